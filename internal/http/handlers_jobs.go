// Package httpx provides the HTTP API: job submission, job status, the websocket
// stream and health probes.
package httpx

import (
	"net/http"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/service"
)

// SubmitMessage is returned when a job is accepted.
const SubmitMessage = "Patient data processing started."

// SubmitResponse is the body of POST /api/process-patient/{patientId}.
type SubmitResponse struct {
	Accepted  bool   `json:"accepted"`
	Message   string `json:"message"`
	PatientID string `json:"patientId"`
	JobID     string `json:"jobId,omitempty"`
}

// JobHandlers provides HTTP handlers for patient processing jobs.
type JobHandlers struct {
	Svc *service.JobService
}

// Submit starts processing and answers immediately; the result arrives over the websocket.
func (h *JobHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("patientId")

	sub, err := h.Svc.Submit(r.Context(), patientID)
	if err != nil {
		if apperrors.IsConflict(err) {
			WriteJSON(w, http.StatusConflict, SubmitResponse{
				Accepted:  false,
				Message:   "Patient data processing already running.",
				PatientID: patientID,
			})
			return
		}
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, SubmitResponse{
		Accepted:  true,
		Message:   SubmitMessage,
		PatientID: sub.SubjectKey,
		JobID:     sub.JobID,
	})
}

// Status reports whether a job for the patient is in flight.
func (h *JobHandlers) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Status(r.Context(), r.PathValue("patientId"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}
