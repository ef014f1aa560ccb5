package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/gittidev/vibe-socket-test/config"
	"github.com/gittidev/vibe-socket-test/internal/observability/prom"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// Metrics groups the selected metrics backend.
type Metrics struct {
	// Sink is nil when metrics are disabled; emitters treat nil as a no-op.
	Sink statsd.Sink
	// Handler serves /metrics for the Prometheus backend and is nil otherwise.
	Handler http.Handler

	closer func() error
}

// Close releases the backend's resources.
func (m Metrics) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}

// BuildMetrics configures the metrics backend. A StatsD dial failure is logged and
// metrics stay disabled rather than failing startup.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) Metrics {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.MetricsStatsd:
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
			return Metrics{}
		}
		logger.Info("statsd metrics enabled", "addr", cfg.StatsdAddress)
		return Metrics{Sink: client, closer: client.Close}

	case config.MetricsPrometheus:
		sink := prom.NewSink(prom.Options{Namespace: cfg.Prefix})
		logger.Info("prometheus metrics enabled", "path", "/metrics")
		return Metrics{Sink: sink, Handler: sink.Handler()}

	default:
		return Metrics{}
	}
}
