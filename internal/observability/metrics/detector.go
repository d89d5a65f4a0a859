package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics contains all Prometheus metrics related to the detection engine.
type DetectorMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	ConfidenceScore   *prometheus.HistogramVec
	ObjectsDetected   *prometheus.HistogramVec
	ImageResolution   *prometheus.HistogramVec

	InferenceTotal  *prometheus.CounterVec
	InferenceErrors *prometheus.CounterVec
	ModelLoadTotal  *prometheus.CounterVec
	ModelLoadTime   prometheus.Histogram

	ModelLoadedGauge prometheus.Gauge

	registry *prometheus.Registry
}

// NewDetectorMetrics creates a new instance of DetectorMetrics and registers
// it with the provided registry.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.InferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_inference_duration_seconds",
			Help:    "Model inference time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"model_name", "object_type"},
	)

	m.ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_confidence_score",
			Help:    "Model confidence score for produced counts.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"object_type", "model_name"},
	)

	m.ObjectsDetected = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objects_detected_count",
			Help:    "Number of objects counted per request.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
		[]string{"object_type"},
	)

	m.ImageResolution = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_resolution_pixels",
			Help:    "Uploaded image resolution in pixels.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		},
		[]string{"dimension"},
	)

	m.InferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_inference_total",
			Help: "Total number of inference requests.",
		},
		[]string{"model_name", "status"},
	)

	m.InferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_inference_errors_total",
			Help: "Total number of inference errors.",
		},
		[]string{"model_name", "error_type"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_load_total",
			Help: "Total number of model load attempts.",
		},
		[]string{"model_name", "status"},
	)

	m.ModelLoadTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_load_duration_seconds",
			Help:    "Time taken to load models.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether the detection model is currently loaded (1) or not (0).",
		},
	)
}

// RecordInference records a completed inference with its outcome.
func (m *DetectorMetrics) RecordInference(modelName, objectType string, seconds, confidence float64, counted int) {
	m.InferenceDuration.WithLabelValues(modelName, objectType).Observe(seconds)
	m.ConfidenceScore.WithLabelValues(objectType, modelName).Observe(confidence)
	m.ObjectsDetected.WithLabelValues(objectType).Observe(float64(counted))
	m.InferenceTotal.WithLabelValues(modelName, "success").Inc()
}

// RecordInferenceError records a failed inference.
func (m *DetectorMetrics) RecordInferenceError(modelName, errorType string) {
	m.InferenceTotal.WithLabelValues(modelName, "error").Inc()
	m.InferenceErrors.WithLabelValues(modelName, errorType).Inc()
}

// RecordModelLoad records a model load attempt.
func (m *DetectorMetrics) RecordModelLoad(modelName string, seconds float64, err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(modelName, "error").Inc()
		return
	}
	m.ModelLoadTotal.WithLabelValues(modelName, "success").Inc()
	m.ModelLoadTime.Observe(seconds)
	m.ModelLoadedGauge.Set(1)
}

// RecordImageSize records the resolution of an uploaded image.
func (m *DetectorMetrics) RecordImageSize(width, height int) {
	m.ImageResolution.WithLabelValues("width").Observe(float64(width))
	m.ImageResolution.WithLabelValues("height").Observe(float64(height))
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.ConfidenceScore.Describe(ch)
	m.ObjectsDetected.Describe(ch)
	m.ImageResolution.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	ch <- m.ModelLoadTime.Desc()
	ch <- m.ModelLoadedGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.ConfidenceScore.Collect(ch)
	m.ObjectsDetected.Collect(ch)
	m.ImageResolution.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	ch <- m.ModelLoadTime
	ch <- m.ModelLoadedGauge
}
