package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/job"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

type submitterFunc func(ctx context.Context, req model.JobRequest) (core.Submission, error)

func (f submitterFunc) Submit(ctx context.Context, req model.JobRequest) (core.Submission, error) {
	return f(ctx, req)
}

func failingSubmitter(err error) core.JobSubmitter {
	return submitterFunc(func(_ context.Context, req model.JobRequest) (core.Submission, error) {
		return core.Submission{}, fmt.Errorf("submit %s: %w", req.SubjectKey, err)
	})
}

func TestNewJobService_RequiresSubmitter(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{})
	require.Error(t, err)
	assert.Panics(t, func() { MustNewJobService(JobServiceOptions{}) })
}

func TestJobService_Submit(t *testing.T) {
	var got model.JobRequest
	svc := MustNewJobService(JobServiceOptions{
		Submitter: submitterFunc(func(_ context.Context, req model.JobRequest) (core.Submission, error) {
			got = req
			return core.Submission{JobID: "job-1", SubjectKey: req.SubjectKey}, nil
		}),
	})

	sub, err := svc.Submit(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, core.Submission{JobID: "job-1", SubjectKey: "42"}, sub)
	assert.Equal(t, "42", got.SubjectKey)
}

func TestJobService_SubmitErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"invalid key", apperrors.ErrInvalidSubjectKey, apperrors.ErrCodeValidation},
		{"already running", apperrors.ErrAlreadyRunning, apperrors.ErrCodeConflict},
		{"queue full", apperrors.ErrQueueFull, apperrors.ErrCodeUnavailable},
		{"runner stopped", apperrors.ErrRunnerStopped, apperrors.ErrCodeUnavailable},
		{"unexpected", errors.New("boom"), apperrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := MustNewJobService(JobServiceOptions{Submitter: failingSubmitter(tt.err)})
			_, err := svc.Submit(context.Background(), "42")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestJobService_Status(t *testing.T) {
	registry := job.NewRegistry()
	svc := MustNewJobService(JobServiceOptions{
		Submitter: failingSubmitter(errors.New("unused")),
		Registry:  registry,
	})
	ctx := context.Background()

	view, err := svc.Status(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, JobStatusView{SubjectKey: "42"}, view)

	require.True(t, registry.TryStart("42", "job-1"))
	view, err = svc.Status(ctx, "42")
	require.NoError(t, err)
	assert.True(t, view.Running)
	assert.Equal(t, "job-1", view.JobID)
	require.NotNil(t, view.StartedAt)
	assert.WithinDuration(t, time.Now(), *view.StartedAt, time.Second)

	_, err = svc.Status(ctx, "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_StatusWithoutRegistry(t *testing.T) {
	svc := MustNewJobService(JobServiceOptions{Submitter: failingSubmitter(errors.New("unused"))})

	view, err := svc.Status(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, view.Running)
}
