// classifier.go: TFLite-backed content classifier
package safety

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/countnet/countnet-go/internal/errors"
	"github.com/countnet/countnet-go/internal/imageproc"
)

const classifierInputSize = 224

// ImageNet normalization constants used when the classifier was trained.
var (
	classifierMean = [3]float32{0.485, 0.456, 0.406}
	classifierStd  = [3]float32{0.229, 0.224, 0.225}
)

// ModelClassifier runs a trained TFLite binary classifier over the image and
// returns the sensitive-content class probability.
type ModelClassifier struct {
	modelPath string

	mu     sync.Mutex
	interp *tflite.Interpreter
	model  *tflite.Model
	loaded bool
}

// NewModelClassifier creates a classifier backed by the model at the given
// path. The model is loaded lazily on first use.
func NewModelClassifier(modelPath string) *ModelClassifier {
	return &ModelClassifier{modelPath: modelPath}
}

// ModelID implements Classifier.
func (c *ModelClassifier) ModelID() string {
	return "content_classifier_tflite_v1"
}

// Probability implements Classifier. The interpreter is shared and invoked
// under lock; TFLite interpreters are not safe for concurrent invocation.
func (c *ModelClassifier) Probability(_ context.Context, img image.Image, _ string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoadedLocked(); err != nil {
		return 0, err
	}

	input := c.interp.GetInputTensor(0)
	if input == nil {
		return 0, inferenceError(fmt.Errorf("classifier input tensor unavailable"))
	}
	tensor := imageproc.TensorNormalized(img, classifierInputSize, classifierMean, classifierStd)
	if copied := copy(input.Float32s(), tensor); copied != len(tensor) {
		return 0, inferenceError(fmt.Errorf("classifier input size mismatch: copied %d of %d", copied, len(tensor)))
	}

	if status := c.interp.Invoke(); status != tflite.OK {
		return 0, inferenceError(fmt.Errorf("classifier invoke failed with status %d", status))
	}

	output := c.interp.GetOutputTensor(0)
	if output == nil {
		return 0, inferenceError(fmt.Errorf("classifier output tensor unavailable"))
	}
	logits := output.Float32s()
	if len(logits) < 2 {
		return 0, inferenceError(fmt.Errorf("unexpected classifier output length %d", len(logits)))
	}

	// Softmax over [benign, sensitive]; index 1 is the sensitive class.
	return softmax2(logits[0], logits[1]), nil
}

// ensureLoadedLocked loads the classifier model on first use. Failed loads
// are not cached: a transient read failure must not disable the content
// check for the remaining process lifetime, so a later call retries.
func (c *ModelClassifier) ensureLoadedLocked() error {
	if c.loaded {
		return nil
	}

	data, err := os.ReadFile(c.modelPath)
	if err != nil {
		return errors.New(err).
			Component("safety").
			Category(errors.CategoryModelLoad).
			ModelContext(c.modelPath, c.ModelID()).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return errors.Newf("cannot load safety classifier model").
			Component("safety").
			Category(errors.CategoryModelInit).
			ModelContext(c.modelPath, c.ModelID()).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return errors.Newf("cannot create safety classifier interpreter").
			Component("safety").
			Category(errors.CategoryModelInit).
			ModelContext(c.modelPath, c.ModelID()).
			Build()
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return errors.Newf("tensor allocation failed for safety classifier").
			Component("safety").
			Category(errors.CategoryModelInit).
			ModelContext(c.modelPath, c.ModelID()).
			Build()
	}

	c.model = model
	c.interp = interp
	c.loaded = true
	return nil
}

func softmax2(a, b float32) float64 {
	ea := math.Exp(float64(a))
	eb := math.Exp(float64(b))
	return eb / (ea + eb)
}

func inferenceError(err error) error {
	return errors.New(err).
		Component("safety").
		Category(errors.CategoryInference).
		Build()
}
