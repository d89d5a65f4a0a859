// heuristic.go: placeholder content classifier built on image statistics
package safety

import (
	"context"
	"image"
	"strings"

	"github.com/countnet/countnet-go/internal/imageproc"
)

// Filename terms that suggest military content. Broader than the category
// blocklist on purpose: filenames are weak evidence, so a match only lowers
// the bar for the image-statistics rules below.
var filenameKeywords = []string{
	"tank", "military", "armor", "combat", "battle", "war", "defense", "soldier", "vehicle",
}

// HeuristicClassifier estimates sensitive-content probability from image
// characteristics: resolution, aspect ratio, brightness and filename hints.
// It stands in for a trained classifier and satisfies the same Classifier
// contract, so swapping in a genuine model touches no caller.
type HeuristicClassifier struct{}

// NewHeuristicClassifier returns the heuristic content classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// ModelID implements Classifier.
func (h *HeuristicClassifier) ModelID() string {
	return "content_heuristic_v1"
}

// Probability implements Classifier. The rules replicate the calibrated
// placeholder decision function: large, dark or oddly proportioned images
// score high, with a lower bar when the filename already hints at military
// content.
func (h *HeuristicClassifier) Probability(_ context.Context, img image.Image, filename string) (float64, error) {
	stats := imageproc.Analyze(img)
	area := stats.Width * stats.Height

	suspiciousName := false
	lower := strings.ToLower(filename)
	for _, keyword := range filenameKeywords {
		if strings.Contains(lower, keyword) {
			suspiciousName = true
			break
		}
	}

	probability := 0.0

	if suspiciousName {
		// Lenient criteria once the filename points at military content.
		if area > 100_000 || stats.Brightness < 0.4 || stats.AspectRatio < 0.5 || stats.AspectRatio > 2.5 {
			probability = 0.85
		}
		if area > 1_000_000 {
			probability = max(probability, 0.9)
		}
		if area > 800_000 && stats.Brightness < 0.15 {
			probability = max(probability, 0.85)
		}
	} else if area > 500_000 && stats.AspectRatio >= 0.3 && stats.AspectRatio <= 3.0 && stats.Brightness < 0.2 {
		// Without a filename hint only very large, very dark images qualify.
		probability = 0.8
	}

	return probability, nil
}
