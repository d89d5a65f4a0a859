// Package pipeline orchestrates a counting request end to end: category
// validation, image decoding, the safety gate, inference, result rendering
// and persistence. The HTTP layer stays a thin adapter over this package.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/datastore"
	"github.com/countnet/countnet-go/internal/detection"
	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/fewshot"
	"github.com/countnet/countnet-go/internal/imageproc"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability"
	"github.com/countnet/countnet-go/internal/safety"
)

// Counter is the detection backend used for built-in categories.
type Counter interface {
	Count(ctx context.Context, img image.Image, category string) (detection.Summary, error)
}

// Evaluator is the safety gate.
type Evaluator interface {
	Evaluate(ctx context.Context, img image.Image, category, filename string, labels []string) safety.Decision
}

// CountRequest is one counting request after transport decoding.
type CountRequest struct {
	ObjectType string
	Filename   string
	Data       []byte
	Learned    bool // route the request through the few-shot recognizer
}

// CountOutcome is the full result of a processed request. Blocked outcomes
// carry the safety decision and no result record.
type CountOutcome struct {
	Blocked  bool
	Decision safety.Decision

	ResultID           string
	ObjectType         string
	Count              int
	Confidence         float64
	Source             string
	SegmentedImagePath string
	ProcessingTime     time.Duration
	TrainingImages     int // few-shot requests only
}

// Pipeline wires the stages together.
type Pipeline struct {
	settings *conf.Settings
	store    datastore.Interface
	gate     Evaluator
	counter  Counter
	fewshot  *fewshot.Manager
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New assembles a pipeline from its stages.
func New(settings *conf.Settings, store datastore.Interface, gate Evaluator, counter Counter, manager *fewshot.Manager, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		settings: settings,
		store:    store,
		gate:     gate,
		counter:  counter,
		fewshot:  manager,
		metrics:  metrics,
		log:      logging.ForService("pipeline"),
	}
}

// Process runs one counting request through every stage. A safety block is a
// normal outcome, not an error: the decision is returned and nothing is
// persisted.
func (p *Pipeline) Process(ctx context.Context, req CountRequest) (CountOutcome, error) {
	start := time.Now()

	category := fewshot.NormalizeName(req.ObjectType)
	if category == "" {
		return CountOutcome{}, validationError("object_type must not be empty")
	}

	if req.Learned {
		if !p.fewshot.IsLearned(category) {
			return CountOutcome{}, errors.Newf("no learned object named %q", category).
				Component("pipeline").
				Category(errors.CategoryNotFound).
				Build()
		}
	} else if !detection.IsBuiltinType(category) && !p.fewshot.IsLearned(category) {
		return CountOutcome{}, validationError("object type %q is not supported", category)
	}

	img, format, err := imageproc.Decode(req.Data)
	if err != nil {
		return CountOutcome{}, err
	}
	stats := imageproc.Analyze(img)
	p.metrics.Detector.RecordImageSize(stats.Width, stats.Height)

	if p.settings.Safety.Enabled {
		decision := p.gate.Evaluate(ctx, img, category, req.Filename, nil)
		if !decision.Allowed {
			p.log.Info("request blocked by safety gate",
				"object_type", category,
				"reason", decision.Reason,
				"risk", decision.Risk)
			return CountOutcome{Blocked: true, Decision: decision}, nil
		}
	}

	var (
		summary        detection.Summary
		source         string
		penalty        time.Duration
		trainingImages int
	)
	if req.Learned || !detection.IsBuiltinType(category) {
		var info fewshot.CategoryInfo
		summary, info, penalty, err = p.fewshot.CountLearned(ctx, img, category)
		source = datastore.SourceFewShot
		trainingImages = info.TrainingImages
	} else {
		summary, err = p.counter.Count(ctx, img, category)
		source = datastore.SourceDetector
	}
	if err != nil {
		return CountOutcome{}, err
	}

	resultID := uuid.New().String()

	imagePath, err := p.saveUpload(resultID, format, req.Data)
	if err != nil {
		return CountOutcome{}, err
	}

	var segmentedPath string
	if p.settings.Detector.SaveSegmented {
		segmentedPath, err = detection.RenderSegmented(img, summary.Detections, category, p.settings.SegmentedDir())
		if err != nil {
			// Annotation is best-effort, the count still stands.
			p.log.Warn("segmented image rendering failed", "result_id", resultID, "error", err)
			segmentedPath = ""
		}
	}

	// The reported time includes the few-shot adaptation penalty; the
	// wall-clock path does not sleep for it.
	elapsed := time.Since(start) + penalty

	record := &datastore.CountResult{
		ResultID:           resultID,
		ObjectType:         category,
		Count:              summary.Count,
		Confidence:         summary.Confidence,
		ImagePath:          imagePath,
		SegmentedImagePath: segmentedPath,
		Source:             source,
		ProcessingTimeMs:   elapsed.Milliseconds(),
	}

	opStart := time.Now()
	err = p.store.SaveResult(record)
	p.metrics.Datastore.RecordOperation("save_result", time.Since(opStart).Seconds(), err)
	if err != nil {
		return CountOutcome{}, err
	}
	p.metrics.Datastore.ResultsTotal.Inc()

	p.log.Info("count produced",
		"result_id", resultID,
		"object_type", category,
		"count", summary.Count,
		"confidence", summary.Confidence,
		"source", source,
		"duration_ms", elapsed.Milliseconds())

	return CountOutcome{
		ResultID:           resultID,
		ObjectType:         category,
		Count:              summary.Count,
		Confidence:         summary.Confidence,
		Source:             source,
		SegmentedImagePath: segmentedPath,
		ProcessingTime:     elapsed,
		TrainingImages:     trainingImages,
	}, nil
}

// Correct records a caller-submitted corrected count for an existing result
// and refreshes the accuracy gauges.
func (p *Pipeline) Correct(ctx context.Context, resultID string, correctedCount int) (datastore.AccuracySummary, error) {
	if correctedCount < 0 {
		return datastore.AccuracySummary{}, validationError("corrected count must not be negative, got %d", correctedCount)
	}
	if _, err := uuid.Parse(resultID); err != nil {
		return datastore.AccuracySummary{}, validationError("result id %q is not a valid UUID", resultID)
	}

	opStart := time.Now()
	err := p.store.SaveCorrection(resultID, correctedCount)
	p.metrics.Datastore.RecordOperation("save_correction", time.Since(opStart).Seconds(), err)
	if err != nil {
		return datastore.AccuracySummary{}, err
	}
	p.metrics.Datastore.CorrectionsTotal.Inc()

	if err := p.refreshAccuracy(); err != nil {
		p.log.Warn("accuracy refresh failed", "error", err)
	}

	summary, err := p.store.AccuracySummary()
	if err != nil {
		return datastore.AccuracySummary{}, err
	}
	p.log.Info("correction recorded",
		"result_id", resultID,
		"corrected_count", correctedCount,
		"accuracy_percent", summary.AccuracyPercent)
	return summary, nil
}

// Accuracy returns the overall and per-type accuracy summaries.
func (p *Pipeline) Accuracy() (datastore.AccuracySummary, map[string]datastore.AccuracySummary, error) {
	overall, err := p.store.AccuracySummary()
	if err != nil {
		return datastore.AccuracySummary{}, nil, err
	}
	byType, err := p.store.AccuracyByType()
	if err != nil {
		return datastore.AccuracySummary{}, nil, err
	}
	return overall, byType, nil
}

func (p *Pipeline) refreshAccuracy() error {
	overall, err := p.store.AccuracySummary()
	if err != nil {
		return err
	}
	p.metrics.Datastore.SetAccuracy("all", overall.AccuracyPercent)

	byType, err := p.store.AccuracyByType()
	if err != nil {
		return err
	}
	for objectType, summary := range byType {
		p.metrics.Datastore.SetAccuracy(objectType, summary.AccuracyPercent)
	}
	return nil
}

func (p *Pipeline) saveUpload(resultID, format string, data []byte) (string, error) {
	ext := "jpg"
	switch format {
	case "png", "gif":
		ext = format
	}
	path := filepath.Join(p.settings.UploadsDir(), fmt.Sprintf("%s.%s", resultID, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("pipeline").
		Category(errors.CategoryValidation).
		Build()
}
