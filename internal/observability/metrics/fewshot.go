package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// FewShotMetrics contains all Prometheus metrics related to the few-shot
// category manager.
type FewShotMetrics struct {
	LearnedTotal   prometheus.Counter
	DeletedTotal   prometheus.Counter
	TrainingImages prometheus.Histogram
	LearnedGauge   prometheus.Gauge
	CountsTotal    *prometheus.CounterVec
	LearnDuration  prometheus.Histogram

	registry *prometheus.Registry
}

// NewFewShotMetrics creates a new instance of FewShotMetrics and registers it
// with the provided registry.
func NewFewShotMetrics(registry *prometheus.Registry) (*FewShotMetrics, error) {
	m := &FewShotMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register few-shot metrics: %w", err)
	}
	return m, nil
}

func (m *FewShotMetrics) initMetrics() {
	m.LearnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fewshot_learned_total",
			Help: "Total number of learned object categories.",
		},
	)

	m.DeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fewshot_deleted_total",
			Help: "Total number of deleted learned categories.",
		},
	)

	m.TrainingImages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fewshot_training_images",
			Help:    "Number of training images supplied per learn request.",
			Buckets: []float64{3, 5, 10, 20, 50},
		},
	)

	m.LearnedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fewshot_registered_categories",
			Help: "Current number of registered learned categories.",
		},
	)

	m.CountsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fewshot_counts_total",
			Help: "Total number of count requests against learned categories.",
		},
		[]string{"object_type", "status"},
	)

	m.LearnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fewshot_learn_duration_seconds",
			Help:    "Time taken to register a learned category.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 8),
		},
	)
}

// RecordLearned records a successful learn operation.
func (m *FewShotMetrics) RecordLearned(trainingImages int, seconds float64, registered int) {
	m.LearnedTotal.Inc()
	m.TrainingImages.Observe(float64(trainingImages))
	m.LearnDuration.Observe(seconds)
	m.LearnedGauge.Set(float64(registered))
}

// RecordDeleted records a category deletion.
func (m *FewShotMetrics) RecordDeleted(registered int) {
	m.DeletedTotal.Inc()
	m.LearnedGauge.Set(float64(registered))
}

// RecordCount records a count request against a learned category.
func (m *FewShotMetrics) RecordCount(objectType, status string) {
	m.CountsTotal.WithLabelValues(objectType, status).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *FewShotMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.LearnedTotal.Desc()
	ch <- m.DeletedTotal.Desc()
	ch <- m.TrainingImages.Desc()
	ch <- m.LearnedGauge.Desc()
	m.CountsTotal.Describe(ch)
	ch <- m.LearnDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *FewShotMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.LearnedTotal
	ch <- m.DeletedTotal
	ch <- m.TrainingImages
	ch <- m.LearnedGauge
	m.CountsTotal.Collect(ch)
	ch <- m.LearnDuration
}
