// Package errors classifies errors into short, stable names for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// known maps pipeline sentinels to their class; checked in order so the most specific wins.
var known = []struct {
	err   error
	class string
}{
	{apperrors.ErrAlreadyRunning, "already_running"},
	{apperrors.ErrQueueFull, "queue_full"},
	{apperrors.ErrRunnerStopped, "runner_stopped"},
	{apperrors.ErrInvalidSubjectKey, "invalid_subject_key"},
	{apperrors.ErrSessionConsumed, "session_consumed"},
	{apperrors.ErrTimeout, "timeout"},
	{apperrors.ErrUnavailable, "unavailable"},
	{apperrors.ErrClosed, "closed"},
	{context.DeadlineExceeded, "deadline_exceeded"},
	{context.Canceled, "canceled"},
}

// Classify returns a normalized error type name suitable for tagging metrics/logs.
// Known sentinels map to fixed names; anything else is named after the innermost
// concrete error type in snake_case-ish form.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var execErr *apperrors.ExecutorError
	if goerrors.As(err, &execErr) && execErr.Panicked {
		return "executor_panic"
	}
	for _, k := range known {
		if goerrors.Is(err, k.err) {
			return k.class
		}
	}

	// Unwrap to the innermost error for better signal.
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
