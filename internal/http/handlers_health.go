package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

const readyTimeout = 2 * time.Second

// readyHandler reports 503 until the event channel answers a ping.
func readyHandler(pinger core.Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger == nil {
			healthHandler(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "readiness check failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		healthHandler(w, r)
	}
}
