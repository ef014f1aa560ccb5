package httpx

import (
	"net/http"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// PatientLister supplies the roster.
type PatientLister interface {
	List() []model.Patient
}

// PatientHandlers serve the patient roster.
type PatientHandlers struct {
	Roster PatientLister
}

// List returns every monitored patient.
func (h *PatientHandlers) List(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Roster.List())
}
