package errors

import (
	"errors"
	"fmt"
)

// Event channel and job pipeline sentinels. Adapters wrap transport errors with these
// so callers can branch with errors.Is regardless of the broker in use.
var (
	// ErrUnavailable indicates the broker could not be reached.
	ErrUnavailable = errors.New("event channel unavailable")
	// ErrTimeout indicates a broker operation did not complete within its bound.
	ErrTimeout = errors.New("event channel timeout")
	// ErrClosed indicates the subscription or channel was already closed.
	ErrClosed = errors.New("event channel closed")

	// ErrInvalidSubjectKey indicates the subject key cannot be used in a topic name.
	ErrInvalidSubjectKey = errors.New("invalid subject key")
	// ErrAlreadyRunning indicates a job for the subject is already in flight.
	ErrAlreadyRunning = errors.New("job already running for subject")
	// ErrQueueFull indicates the runner's queue cannot take another job.
	ErrQueueFull = errors.New("job queue is full")
	// ErrRunnerStopped indicates the runner no longer accepts jobs.
	ErrRunnerStopped = errors.New("job runner stopped")
	// ErrSessionConsumed indicates a session's receive sequence was already started.
	ErrSessionConsumed = errors.New("session receive already started")
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeConflict indicates the request conflicts with in-flight state.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeUnavailable indicates a dependency cannot serve the request right now.
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsUnavailable checks if an error is an Unavailable error or wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return isCode(err, ErrCodeUnavailable) || errors.Is(err, ErrUnavailable)
}

// IsTimeout checks if an error is a Timeout error or wraps ErrTimeout.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout) || errors.Is(err, ErrTimeout)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ExecutorError wraps a failure raised by the job executor, including recovered panics.
type ExecutorError struct {
	SubjectKey string
	Panicked   bool
	Cause      error
}

func (e *ExecutorError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("executor panicked for %s: %v", e.SubjectKey, e.Cause)
	}
	return fmt.Sprintf("executor failed for %s: %v", e.SubjectKey, e.Cause)
}

func (e *ExecutorError) Unwrap() error {
	return e.Cause
}
