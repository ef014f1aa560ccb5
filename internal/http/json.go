package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// statusForError maps application errors onto HTTP statuses and stable error codes.
func statusForError(err error) (int, string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, "invalid_request"
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, "already_running"
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, "timeout"
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidSubjectKey):
		return http.StatusBadRequest, "invalid_request"
	case apperrors.IsUnavailable(err), apperrors.IsTimeout(err):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteAppError writes err with the status its code maps to.
func WriteAppError(w http.ResponseWriter, err error) {
	code, errCode := statusForError(err)
	WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: err})
}
