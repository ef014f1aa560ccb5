package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gittidev/vibe-socket-test/internal/adapters/websocket"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/service"
)

// StreamHandlers serve the websocket result stream.
type StreamHandlers struct {
	Hub      *service.RelayHub
	Upgrader *websocket.Upgrader
	Logger   *slog.Logger
}

// ServeWS subscribes for the requested patient (or every patient) and then
// upgrades the request. Broker failures are reported before the upgrade so the
// client sees a plain HTTP error instead of a socket that never delivers.
func (h *StreamHandlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, service.StreamResults)
}

// ServeAlertsWS is ServeWS for alert and alert_resolved events.
func (h *StreamHandlers) ServeAlertsWS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, service.StreamAlerts)
}

func (h *StreamHandlers) serve(w http.ResponseWriter, r *http.Request, stream service.Stream) {
	req := service.StreamRequest{SubjectKey: r.URL.Query().Get("patientId"), Stream: stream}
	if _, _, err := h.Hub.Resolve(req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	upgraded := false
	accept := func() (service.Conn, error) {
		upgraded = true
		return h.Upgrader.Accept(w, r)()
	}

	// Serve blocks for the lifetime of the connection.
	err := h.Hub.Serve(r.Context(), req, accept)
	if err == nil {
		return
	}
	if upgraded {
		if !errors.Is(err, service.ErrConnClosed) {
			h.Logger.DebugContext(r.Context(), "websocket stream ended", "error", err)
		}
		return
	}
	if apperrors.IsUnavailable(err) || apperrors.IsTimeout(err) {
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "unavailable", Err: err})
		return
	}
	WriteAppError(w, err)
}
