package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// MetricsBackend selects where metrics are emitted.
type MetricsBackend string

const (
	// MetricsNone disables metrics.
	MetricsNone MetricsBackend = "none"
	// MetricsStatsd emits over UDP to a StatsD agent.
	MetricsStatsd MetricsBackend = "statsd"
	// MetricsPrometheus exposes a /metrics endpoint.
	MetricsPrometheus MetricsBackend = "prometheus"
)

// UnmarshalText implements encoding.TextUnmarshaler for MetricsBackend.
func (m *MetricsBackend) UnmarshalText(text []byte) error {
	v := MetricsBackend(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = MetricsNone
	}
	switch v {
	case MetricsNone, MetricsStatsd, MetricsPrometheus:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid metrics backend: %q (valid options: none, statsd, prometheus)", v)
	}
}

// ObservabilityConfig groups configuration that controls metrics.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to external sinks.
type ObservabilityMetricsConfig struct {
	Backend       MetricsBackend `env:"OBSERVABILITY_METRICS_BACKEND"        envDefault:"none"`
	StatsdAddress string         `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string         `env:"OBSERVABILITY_METRICS_PREFIX"         envDefault:"vibe_socket"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.TrimSpace(c.Prefix)
	if c.Backend == "" {
		c.Backend = MetricsNone
	}
	if c.Backend == MetricsStatsd && c.StatsdAddress == "" {
		c.Backend = MetricsNone
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Backend == MetricsStatsd || c.Backend == MetricsPrometheus
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `env:"LEVEL"  envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Sanitize applies guardrails to logging configuration values.
func (c *LogConfig) Sanitize() {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if _, err := c.SlogLevel(); err != nil {
		c.Level = "info"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format != "text" {
		c.Format = "json"
	}
}

// SlogLevel parses Level into an slog.Level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}
