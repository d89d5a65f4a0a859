package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for the result and correction
// store, including the running accuracy gauges derived from corrections.
type DatastoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec
	ResultsTotal      prometheus.Counter
	CorrectionsTotal  prometheus.Counter

	// Count-correctness gauges. Precision and recall intentionally mirror
	// accuracy: the store tracks a single correctness ratio, not a
	// per-class confusion matrix.
	AccuracyGauge  *prometheus.GaugeVec
	PrecisionGauge *prometheus.GaugeVec
	RecallGauge    *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewDatastoreMetrics creates a new instance of DatastoreMetrics and registers
// it with the provided registry.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_operation_duration_seconds",
			Help:    "Time taken for datastore operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"operation"},
	)

	m.OperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_operation_errors_total",
			Help: "Total number of failed datastore operations.",
		},
		[]string{"operation"},
	)

	m.ResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "count_results_total",
			Help: "Total number of stored count results.",
		},
	)

	m.CorrectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "count_corrections_total",
			Help: "Total number of submitted corrections, including overwrites.",
		},
	)

	m.AccuracyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_accuracy",
			Help: "Model accuracy percentage computed from corrections.",
		},
		[]string{"object_type"},
	)

	m.PrecisionGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_precision",
			Help: "Model precision percentage computed from corrections.",
		},
		[]string{"object_type"},
	)

	m.RecallGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_recall",
			Help: "Model recall percentage computed from corrections.",
		},
		[]string{"object_type"},
	)
}

// RecordOperation records a datastore operation duration.
func (m *DatastoreMetrics) RecordOperation(operation string, seconds float64, err error) {
	if err != nil {
		m.OperationErrors.WithLabelValues(operation).Inc()
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// SetAccuracy updates the accuracy, precision and recall gauges for a type.
func (m *DatastoreMetrics) SetAccuracy(objectType string, accuracyPercent float64) {
	m.AccuracyGauge.WithLabelValues(objectType).Set(accuracyPercent)
	m.PrecisionGauge.WithLabelValues(objectType).Set(accuracyPercent)
	m.RecallGauge.WithLabelValues(objectType).Set(accuracyPercent)
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.OperationDuration.Describe(ch)
	m.OperationErrors.Describe(ch)
	ch <- m.ResultsTotal.Desc()
	ch <- m.CorrectionsTotal.Desc()
	m.AccuracyGauge.Describe(ch)
	m.PrecisionGauge.Describe(ch)
	m.RecallGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.OperationDuration.Collect(ch)
	m.OperationErrors.Collect(ch)
	ch <- m.ResultsTotal
	ch <- m.CorrectionsTotal
	m.AccuracyGauge.Collect(ch)
	m.PrecisionGauge.Collect(ch)
	m.RecallGauge.Collect(ch)
}
