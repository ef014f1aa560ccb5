package testutil

import (
	"context"
	"sync"
	"time"
)

// StubExecutor is a configurable core.Executor for runner and service tests.
type StubExecutor struct {
	Delay   time.Duration
	Payload string
	Err     error
	Panic   any

	mu    sync.Mutex
	calls []string
}

// Execute records the call, waits Delay, then returns Payload, Err, or panics with Panic.
func (e *StubExecutor) Execute(ctx context.Context, subjectKey string) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, subjectKey)
	e.mu.Unlock()

	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if e.Panic != nil {
		panic(e.Panic)
	}
	if e.Err != nil {
		return "", e.Err
	}
	return e.Payload, nil
}

// Calls returns the subject keys Execute was invoked with, in order.
func (e *StubExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}
