// Package metrics provides custom Prometheus metrics for the CountNet-Go application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SafetyMetrics contains all Prometheus metrics related to the safety gate.
type SafetyMetrics struct {
	BlocksTotal         *prometheus.CounterVec
	BlockConfidence     *prometheus.HistogramVec
	CheckDuration       *prometheus.HistogramVec
	CheckFailures       *prometheus.CounterVec
	EvaluationsTotal    *prometheus.CounterVec
	ClassifierProbGauge prometheus.Gauge

	registry *prometheus.Registry
}

// NewSafetyMetrics creates a new instance of SafetyMetrics and registers it
// with the provided registry.
func NewSafetyMetrics(registry *prometheus.Registry) (*SafetyMetrics, error) {
	m := &SafetyMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register safety metrics: %w", err)
	}
	return m, nil
}

func (m *SafetyMetrics) initMetrics() {
	m.BlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_blocks_total",
			Help: "Total number of requests blocked by the safety gate.",
		},
		[]string{"object_type", "reason"},
	)

	m.BlockConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safety_detection_confidence",
			Help:    "Classifier confidence for safety gate decisions.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"object_type", "reason"},
	)

	m.CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safety_check_duration_seconds",
			Help:    "Time taken to evaluate the safety gate.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"model"},
	)

	m.CheckFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_check_failures_total",
			Help: "Total number of internal safety gate failures, partitioned by applied policy.",
		},
		[]string{"policy"},
	)

	m.EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_evaluations_total",
			Help: "Total number of safety gate evaluations by outcome.",
		},
		[]string{"outcome"},
	)

	m.ClassifierProbGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "safety_last_classifier_probability",
			Help: "Most recent sensitive-content probability reported by the classifier.",
		},
	)
}

// RecordBlock records a blocked request with its reason and confidence.
func (m *SafetyMetrics) RecordBlock(objectType, reason string, confidence float64) {
	m.BlocksTotal.WithLabelValues(objectType, reason).Inc()
	m.BlockConfidence.WithLabelValues(objectType, reason).Observe(confidence)
	m.EvaluationsTotal.WithLabelValues("blocked").Inc()
}

// RecordAllowed records an allowed request.
func (m *SafetyMetrics) RecordAllowed() {
	m.EvaluationsTotal.WithLabelValues("allowed").Inc()
}

// RecordFailure records an internal gate failure handled by the given policy.
func (m *SafetyMetrics) RecordFailure(policy string) {
	m.CheckFailures.WithLabelValues(policy).Inc()
}

// RecordCheck records the duration and classifier probability of an evaluation.
func (m *SafetyMetrics) RecordCheck(model string, seconds, probability float64) {
	m.CheckDuration.WithLabelValues(model).Observe(seconds)
	m.ClassifierProbGauge.Set(probability)
}

// Describe implements the prometheus.Collector interface.
func (m *SafetyMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BlocksTotal.Describe(ch)
	m.BlockConfidence.Describe(ch)
	m.CheckDuration.Describe(ch)
	m.CheckFailures.Describe(ch)
	m.EvaluationsTotal.Describe(ch)
	ch <- m.ClassifierProbGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *SafetyMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BlocksTotal.Collect(ch)
	m.BlockConfidence.Collect(ch)
	m.CheckDuration.Collect(ch)
	m.CheckFailures.Collect(ch)
	m.EvaluationsTotal.Collect(ch)
	ch <- m.ClassifierProbGauge
}
