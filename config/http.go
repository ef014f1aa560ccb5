package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"ADDR" envDefault:":8080"`

	// AllowedOrigins lists browser origins allowed for CORS and websocket upgrades.
	// "*" allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*"`

	// SubmitRateLimit is the sustained per-client rate for job submissions.
	// Zero disables limiting.
	SubmitRateLimit float64 `env:"SUBMIT_RATE_LIMIT" envDefault:"0"`
	SubmitRateBurst int     `env:"SUBMIT_RATE_BURST" envDefault:"10"`

	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds how long in-flight requests get to finish on shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	origins := h.AllowedOrigins[:0]
	for _, o := range h.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = append(origins, "*")
	}
	h.AllowedOrigins = origins
	if h.SubmitRateLimit < 0 {
		h.SubmitRateLimit = 0
	}
	if h.SubmitRateBurst < 1 {
		h.SubmitRateBurst = 1
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
