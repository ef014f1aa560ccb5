package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Submitter core.JobSubmitter // Required: background runner
	Registry  core.JobRegistry  // Optional: in-flight status lookups
	Logger    *slog.Logger      // Optional: structured logger
}

// JobService is the request gateway's view of the job pipeline.
type JobService struct {
	submitter core.JobSubmitter
	registry  core.JobRegistry
	logger    *slog.Logger
}

// JobStatusView reports whether a subject has a job in flight.
type JobStatusView struct {
	SubjectKey string     `json:"patientId"`
	Running    bool       `json:"running"`
	JobID      string     `json:"jobId,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Submitter == nil {
		return nil, errors.New("job submitter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		submitter: opts.Submitter,
		registry:  opts.Registry,
		logger:    logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit starts processing for subjectKey and returns as soon as the job is queued.
// Errors are AppErrors whose code tells the caller how to respond.
func (s *JobService) Submit(ctx context.Context, subjectKey string) (core.Submission, error) {
	sub, err := s.submitter.Submit(ctx, model.JobRequest{SubjectKey: subjectKey})
	if err == nil {
		s.logger.InfoContext(ctx, "patient processing started", "patient_id", subjectKey, "job_id", sub.JobID)
		return sub, nil
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidSubjectKey):
		return core.Submission{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid patient id")
	case errors.Is(err, apperrors.ErrAlreadyRunning):
		return core.Submission{}, apperrors.Wrap(err, apperrors.ErrCodeConflict, "patient processing already running")
	case errors.Is(err, apperrors.ErrQueueFull), errors.Is(err, apperrors.ErrRunnerStopped):
		return core.Submission{}, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "job runner cannot accept work")
	default:
		s.logger.ErrorContext(ctx, "submit job", "patient_id", subjectKey, "error", err)
		return core.Submission{}, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "submit job for %s", subjectKey)
	}
}

// Status reports the in-flight job for subjectKey, if the registry is enabled.
func (s *JobService) Status(_ context.Context, subjectKey string) (JobStatusView, error) {
	if err := model.ValidateSubjectKey(subjectKey); err != nil {
		return JobStatusView{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid patient id")
	}
	view := JobStatusView{SubjectKey: subjectKey}
	if s.registry == nil {
		return view, nil
	}
	if state, ok := s.registry.Status(subjectKey); ok {
		started := state.StartedAt
		view.Running = true
		view.JobID = state.JobID
		view.StartedAt = &started
	}
	return view, nil
}
