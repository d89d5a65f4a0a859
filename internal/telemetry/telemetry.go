// Package telemetry wires optional Sentry error reporting into the errors package.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/errors"
)

// Reporter forwards enhanced errors to Sentry.
type Reporter struct{}

// Init configures Sentry and installs the telemetry reporter. It is a no-op
// when telemetry is disabled in the settings, keeping error handling fully
// local by default.
func Init(settings *conf.Settings) error {
	if !settings.Sentry.Enabled || settings.Sentry.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Environment:      settings.Sentry.Environment,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(&Reporter{})
	return nil
}

// ReportError implements errors.TelemetryReporter.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", ee.GetCategory())
		if ee.Priority != "" {
			scope.SetLevel(sentryLevel(ee.Priority))
		}
		for k, v := range ee.Context {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee.Err)
	})
}

// Flush drains pending events before shutdown.
func Flush() {
	sentry.Flush(2 * time.Second)
}

func sentryLevel(priority string) sentry.Level {
	switch priority {
	case errors.PriorityCritical:
		return sentry.LevelFatal
	case errors.PriorityHigh:
		return sentry.LevelError
	case errors.PriorityMedium:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
