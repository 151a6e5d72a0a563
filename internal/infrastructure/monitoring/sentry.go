package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kidpech/tracelens/internal/config"
)

// InitSentry configures sentry if DSN provided.
func InitSentry(cfg config.MonitoringConfig, app config.AppConfig) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          app.Version,
		Environment:      app.Env,
		TracesSampleRate: cfg.SentrySampleRate,
	})
}

// ReportCaptureFailure sends a swallowed capture error to sentry. It is a
// no-op when sentry was never initialised.
func ReportCaptureFailure(err error) {
	if err == nil {
		return
	}
	captureFailures.Inc()
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("component", "tracelens.capture")
			hub.CaptureException(err)
		})
	}
}

// Flush ensures buffered events ship.
func Flush() {
	sentry.Flush(2 * time.Second)
}
