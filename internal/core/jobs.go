package core

import (
	"context"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// Executor performs the domain work for one subject and returns the result payload.
// It runs on a runner worker, never on the submitting goroutine.
type Executor interface {
	Execute(ctx context.Context, subjectKey string) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, subjectKey string) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, subjectKey string) (string, error) {
	return f(ctx, subjectKey)
}

// JobRegistry tracks which subjects have a job in flight.
type JobRegistry interface {
	// TryStart records jobID as running for subjectKey. It returns false if a job
	// for the subject is already running.
	TryStart(subjectKey, jobID string) bool
	Finish(subjectKey string)
	Status(subjectKey string) (model.JobState, bool)
}

// Submission identifies an accepted job.
type Submission struct {
	JobID      string
	SubjectKey string
}

// JobSubmitter hands jobs to the background runner.
type JobSubmitter interface {
	Submit(ctx context.Context, req model.JobRequest) (Submission, error)
}
