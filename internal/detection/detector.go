// detector.go: TFLite object detector wrapper and counting entry point
package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/imageproc"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/observability/metrics"
)

// ModelName identifies the base detection model in metrics and results.
const ModelName = "countnet_detector_v1"

// Detection is one candidate object produced by the detector.
type Detection struct {
	ClassID    int        `json:"class_id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2 normalized to [0,1]
	Counted    bool       `json:"counted"`
}

// Detector wraps the shared TFLite interpreter. The model is loaded lazily on
// first use; concurrent first requests trigger exactly one load. Interpreter
// invocations are serialized and additionally bounded by a configurable
// number of inference slots.
type Detector struct {
	settings *conf.Settings
	metrics  *metrics.DetectorMetrics
	log      *slog.Logger
	policy   PolicyConfig

	loadGroup singleflight.Group
	loadCount atomic.Int64
	loaded    atomic.Bool
	loadFn    func() error

	slots *semaphore.Weighted

	mu     sync.Mutex // serializes access to the shared interpreter
	model  *tflite.Model
	interp *tflite.Interpreter
}

// New creates a detector from settings. No model is loaded yet.
func New(settings *conf.Settings, m *metrics.DetectorMetrics) *Detector {
	d := &Detector{
		settings: settings,
		metrics:  m,
		log:      logging.ForService("detection"),
		policy: PolicyConfig{
			Threshold:            settings.Detector.Threshold,
			TypeThresholds:       settings.Detector.TypeThresholds,
			EquivalenceThreshold: settings.Detector.EquivalenceThreshold,
			EquivalencePenalty:   settings.Detector.EquivalencePenalty,
		},
		slots: semaphore.NewWeighted(settings.Detector.InferenceSlots),
	}
	d.loadFn = d.loadModel
	return d
}

// LoadCount returns how many times the model has actually been loaded.
// Single-flight initialization keeps this at one regardless of how many
// concurrent first requests arrive.
func (d *Detector) LoadCount() int64 {
	return d.loadCount.Load()
}

// Count runs detection and applies the counting policy for the category.
func (d *Detector) Count(ctx context.Context, img image.Image, category string) (Summary, error) {
	start := time.Now()

	detections, err := d.Detect(ctx, img)
	if err != nil {
		d.metrics.RecordInferenceError(ModelName, string(errors.CategoryOf(err)))
		return Summary{}, err
	}

	summary := ApplyPolicy(detections, category, d.policy)
	d.metrics.RecordInference(ModelName, category, time.Since(start).Seconds(), summary.Confidence, summary.Count)
	return summary, nil
}

// Detect runs the raw detector over the image. A bounded inference slot is
// held for the duration of the call and released on every path, so repeated
// calls cannot leak accelerator resources.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := d.slots.Acquire(ctx, 1); err != nil {
		return nil, errors.New(err).
			Component("detection").
			Category(errors.CategoryInference).
			Build()
	}
	defer d.slots.Release(1)

	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}

	tensor := imageproc.TensorScaled(img, d.settings.Detector.InputSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	input := d.interp.GetInputTensor(0)
	if input == nil {
		return nil, d.inferenceError(fmt.Errorf("input tensor unavailable"))
	}
	if copied := copy(input.Float32s(), tensor); copied != len(tensor) {
		return nil, d.inferenceError(fmt.Errorf("input size mismatch: copied %d of %d", copied, len(tensor)))
	}

	if status := d.interp.Invoke(); status != tflite.OK {
		return nil, d.inferenceError(fmt.Errorf("model invoke failed with status %d", status))
	}

	return d.readDetections()
}

// readDetections parses the SSD-style output tensors: box coordinates,
// class ids, scores, and the number of valid detections.
func (d *Detector) readDetections() ([]Detection, error) {
	boxesTensor := d.interp.GetOutputTensor(0)
	classesTensor := d.interp.GetOutputTensor(1)
	scoresTensor := d.interp.GetOutputTensor(2)
	countTensor := d.interp.GetOutputTensor(3)
	if boxesTensor == nil || classesTensor == nil || scoresTensor == nil || countTensor == nil {
		return nil, d.inferenceError(fmt.Errorf("detector output tensors unavailable"))
	}

	boxes := boxesTensor.Float32s()
	classes := classesTensor.Float32s()
	scores := scoresTensor.Float32s()
	countOut := countTensor.Float32s()
	if len(countOut) == 0 {
		return nil, d.inferenceError(fmt.Errorf("detector count tensor empty"))
	}

	n := int(countOut[0])
	if n > len(scores) {
		n = len(scores)
	}

	detections := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		if i*4+3 >= len(boxes) || i >= len(classes) {
			break
		}
		classID := int(classes[i])
		// Output boxes are ymin, xmin, ymax, xmax.
		detections = append(detections, Detection{
			ClassID:    classID,
			Label:      LabelForClass(classID),
			Confidence: float64(scores[i]),
			Box: [4]float64{
				float64(boxes[i*4+1]),
				float64(boxes[i*4]),
				float64(boxes[i*4+3]),
				float64(boxes[i*4+2]),
			},
		})
	}
	return detections, nil
}

// ensureLoaded loads the model exactly once, even under concurrent first
// requests. Failed loads are not cached so a later request can retry.
func (d *Detector) ensureLoaded() error {
	if d.loaded.Load() {
		return nil
	}
	_, err, _ := d.loadGroup.Do("model-load", func() (any, error) {
		if d.loaded.Load() {
			return nil, nil
		}
		start := time.Now()
		err := d.loadFn()
		d.metrics.RecordModelLoad(ModelName, time.Since(start).Seconds(), err)
		if err != nil {
			return nil, err
		}
		d.loadCount.Add(1)
		d.loaded.Store(true)
		d.log.Info("detection model loaded",
			"model", ModelName,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, nil
	})
	return err
}

func (d *Detector) loadModel() error {
	path := d.settings.Detector.ModelPath

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(err).
			Component("detection").
			Category(errors.CategoryModelLoad).
			ModelContext(path, ModelName).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return errors.Newf("cannot load TensorFlow Lite model").
			Component("detection").
			Category(errors.CategoryModelInit).
			ModelContext(path, ModelName).
			Context("model_size_mb", len(data)/1024/1024).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		return errors.Newf("cannot create model interpreter").
			Component("detection").
			Category(errors.CategoryModelInit).
			ModelContext(path, ModelName).
			Build()
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		return errors.Newf("tensor allocation failed").
			Component("detection").
			Category(errors.CategoryModelInit).
			ModelContext(path, ModelName).
			Build()
	}

	d.mu.Lock()
	d.model = model
	d.interp = interp
	d.mu.Unlock()
	return nil
}

// Close releases the interpreter and model.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interp != nil {
		d.interp.Delete()
		d.interp = nil
	}
	if d.model != nil {
		d.model.Delete()
		d.model = nil
	}
	d.loaded.Store(false)
}

func (d *Detector) inferenceError(err error) error {
	return errors.New(err).
		Component("detection").
		Category(errors.CategoryInference).
		ModelContext(d.settings.Detector.ModelPath, ModelName).
		Build()
}
