package errors

import "sync"

// TelemetryReporter receives enhanced errors for external reporting.
// The concrete implementation lives in internal/telemetry; this indirection
// avoids an import cycle between the two packages.
type TelemetryReporter interface {
	ReportError(ee *EnhancedError)
}

var (
	telemetryMu       sync.RWMutex
	telemetryReporter TelemetryReporter
)

// SetTelemetryReporter installs the reporter used by Build.
// Passing nil disables telemetry reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	telemetryReporter = r
}

func reportToTelemetry(ee *EnhancedError) {
	telemetryMu.RLock()
	r := telemetryReporter
	telemetryMu.RUnlock()
	if r == nil {
		return
	}
	// Validation and not-found errors are caller mistakes, not faults worth
	// shipping to an error tracker.
	if ee.Category == CategoryValidation || ee.Category == CategoryNotFound {
		return
	}
	if ee.markReported() {
		r.ReportError(ee)
	}
}
