// segment.go: rendering of counted detections onto a copy of the upload
package detection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"time"

	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/imageproc"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

// RenderSegmented draws the counted detections onto a copy of the original
// image and writes the result as JPEG into dir. It returns the written path,
// or "" when no detection was counted.
func RenderSegmented(img image.Image, detections []Detection, category, dir string) (string, error) {
	counted := 0
	for _, d := range detections {
		if d.Counted {
			counted++
		}
	}
	if counted == 0 {
		return "", nil
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	w, h := bounds.Dx(), bounds.Dy()
	for _, d := range detections {
		if !d.Counted {
			continue
		}
		imageproc.DrawRect(canvas,
			bounds.Min.X+int(d.Box[0]*float64(w)),
			bounds.Min.Y+int(d.Box[1]*float64(h)),
			bounds.Min.X+int(d.Box[2]*float64(w)),
			bounds.Min.Y+int(d.Box[3]*float64(h)),
			3, boxColor)
	}

	data, err := imageproc.EncodeJPEG(canvas)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("segmented_%s_%d.jpg", category, time.Now().UnixNano())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New(err).
			Component("detection").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}
