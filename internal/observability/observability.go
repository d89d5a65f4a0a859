// Package observability provides metrics and monitoring capabilities for the
// CountNet-Go application.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/countnet/countnet-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Safety    *metrics.SafetyMetrics
	Detector  *metrics.DetectorMetrics
	FewShot   *metrics.FewShotMetrics
	Datastore *metrics.DatastoreMetrics
	HTTP      *metrics.HTTPMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors on a private registry. It returns an error if any collector
// fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	safetyMetrics, err := metrics.NewSafetyMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create safety metrics: %w", err)
	}

	detectorMetrics, err := metrics.NewDetectorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector metrics: %w", err)
	}

	fewShotMetrics, err := metrics.NewFewShotMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create few-shot metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Safety:    safetyMetrics,
		Detector:  detectorMetrics,
		FewShot:   fewShotMetrics,
		Datastore: datastoreMetrics,
		HTTP:      httpMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the metrics exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Gather exposes the underlying registry's gather function for tests.
func (m *Metrics) Gather() prometheus.Gatherer {
	return m.registry
}
