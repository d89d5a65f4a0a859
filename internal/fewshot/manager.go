// Package fewshot manages user-taught object categories: registration from a
// handful of example images, the category registry, and counting against a
// learned category through the shared detector.
package fewshot

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/detection"
	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/imageproc"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability/metrics"
	"github.com/countnet/countnet-go/internal/safety"
)

// Recognizer counts objects of a category in an image. The production
// recognizer is the shared detection model; learned categories reuse it with
// the learned name treated as a first-class category.
type Recognizer interface {
	Count(ctx context.Context, img image.Image, category string) (detection.Summary, error)
}

// CategoryInfo describes one registered learned category.
type CategoryInfo struct {
	Name           string    `json:"name"`
	TrainingImages int       `json:"training_images"`
	CreatedAt      time.Time `json:"created_at"`
}

// Manager owns the learned-category registry. The registry is persisted in
// the datastore and mirrored in memory for lock-cheap membership checks on
// the request path.
type Manager struct {
	settings   *conf.Settings
	store      datastore.Interface
	recognizer Recognizer
	blocklist  *safety.Blocklist
	metrics    *metrics.FewShotMetrics
	log        *slog.Logger

	mu         sync.RWMutex
	categories map[string]CategoryInfo
}

var nameCaser = cases.Lower(language.Und)

// NormalizeName canonicalizes a category name: Unicode-aware lowercasing,
// trimmed, with internal whitespace collapsed to single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(nameCaser.String(name)), " ")
}

// New creates a manager and loads the persisted registry.
func New(settings *conf.Settings, store datastore.Interface, recognizer Recognizer, m *metrics.FewShotMetrics) (*Manager, error) {
	mgr := &Manager{
		settings:   settings,
		store:      store,
		recognizer: recognizer,
		blocklist:  safety.NewBlocklist(settings.Safety.ExtraBlocklist),
		metrics:    m,
		log:        logging.ForService("fewshot"),
		categories: make(map[string]CategoryInfo),
	}

	persisted, err := store.GetLearnedCategories()
	if err != nil {
		return nil, err
	}
	for _, c := range persisted {
		mgr.categories[c.Name] = CategoryInfo{
			Name:           c.Name,
			TrainingImages: c.TrainingImages,
			CreatedAt:      c.CreatedAt,
		}
	}
	mgr.log.Info("learned category registry loaded", "categories", len(mgr.categories))
	return mgr, nil
}

// Learn registers a new category from example images. The name must not
// collide with a built-in category, must pass the safety blocklist, and at
// least MinTrainingImages decodable images are required.
func (m *Manager) Learn(ctx context.Context, name string, images [][]byte) (CategoryInfo, error) {
	start := time.Now()

	normalized := NormalizeName(name)
	if normalized == "" {
		return CategoryInfo{}, validationError("object name must not be empty")
	}
	if detection.IsBuiltinType(normalized) {
		return CategoryInfo{}, validationError("%q is already a built-in object type", normalized)
	}
	if term, blocked := m.blocklist.Match(normalized); blocked {
		return CategoryInfo{}, errors.Newf("object name %q is not allowed", normalized).
			Component("fewshot").
			Category(errors.CategorySafety).
			Context("matched_term", term).
			Build()
	}
	if minImages := m.settings.FewShot.MinTrainingImages; len(images) < minImages {
		return CategoryInfo{}, validationError("at least %d training images are required, got %d", minImages, len(images))
	}

	decoded := make([]image.Image, 0, len(images))
	for i, data := range images {
		img, _, err := imageproc.Decode(data)
		if err != nil {
			return CategoryInfo{}, validationError("training image %d is not a decodable image", i+1)
		}
		decoded = append(decoded, img)
	}

	if err := ctx.Err(); err != nil {
		return CategoryInfo{}, err
	}

	dir := filepath.Join(m.settings.FewShotDir(), dirName(normalized))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CategoryInfo{}, fileError(err, dir)
	}
	for i, img := range decoded {
		data, err := imageproc.EncodeJPEG(img)
		if err != nil {
			return CategoryInfo{}, err
		}
		path := filepath.Join(dir, fmt.Sprintf("training_%03d.jpg", i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return CategoryInfo{}, fileError(err, path)
		}
	}

	record := &datastore.LearnedCategory{Name: normalized, TrainingImages: len(images)}
	if err := m.store.SaveLearnedCategory(record); err != nil {
		return CategoryInfo{}, err
	}

	info := CategoryInfo{
		Name:           normalized,
		TrainingImages: len(images),
		CreatedAt:      record.CreatedAt,
	}

	m.mu.Lock()
	m.categories[normalized] = info
	registered := len(m.categories)
	m.mu.Unlock()

	m.metrics.RecordLearned(len(images), time.Since(start).Seconds(), registered)
	m.log.Info("learned new object category",
		"name", normalized,
		"training_images", len(images),
		"duration_ms", time.Since(start).Milliseconds())
	return info, nil
}

// IsLearned reports whether the normalized name is a registered category.
func (m *Manager) IsLearned(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.categories[NormalizeName(name)]
	return ok
}

// List returns all registered categories sorted by name.
func (m *Manager) List() []CategoryInfo {
	m.mu.RLock()
	infos := make([]CategoryInfo, 0, len(m.categories))
	for _, info := range m.categories {
		infos = append(infos, info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Info returns the registry entry for a category.
func (m *Manager) Info(name string) (CategoryInfo, error) {
	m.mu.RLock()
	info, ok := m.categories[NormalizeName(name)]
	m.mu.RUnlock()
	if !ok {
		return CategoryInfo{}, notFoundError(name)
	}
	return info, nil
}

// Delete unregisters a category and removes its stored training images.
// Counting against the name fails with a not-found error afterwards.
func (m *Manager) Delete(name string) error {
	normalized := NormalizeName(name)

	m.mu.Lock()
	_, ok := m.categories[normalized]
	if ok {
		delete(m.categories, normalized)
	}
	registered := len(m.categories)
	m.mu.Unlock()

	if !ok {
		return notFoundError(name)
	}

	if err := m.store.DeleteLearnedCategory(normalized); err != nil && !errors.HasCategory(err, errors.CategoryNotFound) {
		return err
	}
	if err := os.RemoveAll(filepath.Join(m.settings.FewShotDir(), dirName(normalized))); err != nil {
		m.log.Warn("failed to remove training images", "name", normalized, "error", err)
	}

	m.metrics.RecordDeleted(registered)
	m.log.Info("deleted learned object category", "name", normalized)
	return nil
}

// CountLearned counts objects of a learned category in the image. The
// returned penalty reflects the extra cost of a per-category adapted model
// and grows with the number of training images; it is added to the reported
// processing time, not actually slept.
func (m *Manager) CountLearned(ctx context.Context, img image.Image, name string) (detection.Summary, CategoryInfo, time.Duration, error) {
	normalized := NormalizeName(name)

	m.mu.RLock()
	info, ok := m.categories[normalized]
	m.mu.RUnlock()
	if !ok {
		m.metrics.RecordCount(normalized, "unknown")
		return detection.Summary{}, CategoryInfo{}, 0, notFoundError(name)
	}

	summary, err := m.recognizer.Count(ctx, img, normalized)
	if err != nil {
		m.metrics.RecordCount(normalized, "error")
		return detection.Summary{}, CategoryInfo{}, 0, err
	}

	m.metrics.RecordCount(normalized, "success")
	return summary, info, timePenalty(info.TrainingImages), nil
}

// timePenalty models the additional latency of a category-adapted model:
// half a second base cost plus a tenth per training image, capped at two
// seconds.
func timePenalty(trainingImages int) time.Duration {
	penalty := 500*time.Millisecond + time.Duration(trainingImages)*100*time.Millisecond
	if penalty > 2*time.Second {
		penalty = 2 * time.Second
	}
	return penalty
}

// dirName maps a normalized category name onto a filesystem-safe directory.
func dirName(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "_")
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("fewshot").
		Category(errors.CategoryValidation).
		Build()
}

func notFoundError(name string) error {
	return errors.Newf("no learned object named %q", NormalizeName(name)).
		Component("fewshot").
		Category(errors.CategoryNotFound).
		Build()
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("fewshot").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
