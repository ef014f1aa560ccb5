package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/service"
)

// maxRuleBody bounds a thresholds document.
const maxRuleBody = 16 << 10

// OKResponse acknowledges a rule change.
type OKResponse struct {
	OK bool `json:"ok"`
}

// AlertHandlers expose the alert rule scopes.
type AlertHandlers struct {
	Svc *service.AlertRuleService
}

// List returns the default, ward and patient scopes.
func (h *AlertHandlers) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.Rules(r.Context()))
}

// PutDefault merges the body into the default scope.
func (h *AlertHandlers) PutDefault(w http.ResponseWriter, r *http.Request) {
	t, err := decodeThresholds(w, r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.respond(w, h.Svc.SetDefault(r.Context(), t))
}

// PutWard merges the body into the ward's scope.
func (h *AlertHandlers) PutWard(w http.ResponseWriter, r *http.Request) {
	t, err := decodeThresholds(w, r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.respond(w, h.Svc.SetWard(r.Context(), r.PathValue("ward"), t))
}

// DeleteWard drops the ward's scope.
func (h *AlertHandlers) DeleteWard(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.Svc.DeleteWard(r.Context(), r.PathValue("ward")))
}

// PutPatient merges the body into the patient's scope.
func (h *AlertHandlers) PutPatient(w http.ResponseWriter, r *http.Request) {
	t, err := decodeThresholds(w, r)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.respond(w, h.Svc.SetPatient(r.Context(), r.PathValue("patientId"), t))
}

// DeletePatient drops the patient's scope.
func (h *AlertHandlers) DeletePatient(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.Svc.DeletePatient(r.Context(), r.PathValue("patientId")))
}

func (h *AlertHandlers) respond(w http.ResponseWriter, err error) {
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, OKResponse{OK: true})
}

// decodeThresholds reads a thresholds object. An empty body is an empty update.
func decodeThresholds(w http.ResponseWriter, r *http.Request) (alert.Thresholds, error) {
	var t alert.Thresholds
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRuleBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return alert.Thresholds{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid thresholds body")
	}
	return t, nil
}
