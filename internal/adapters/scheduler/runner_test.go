package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *recordingSubmitter) Submit(_ context.Context, req model.JobRequest) (core.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.SubjectKey)
	if err := s.errs[req.SubjectKey]; err != nil {
		return core.Submission{}, err
	}
	return core.Submission{JobID: "job-" + req.SubjectKey, SubjectKey: req.SubjectKey}, nil
}

func (s *recordingSubmitter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// exhausted fires once and then reports no further activation.
type exhausted struct {
	mu    sync.Mutex
	fired bool
}

func (e *exhausted) Next(t time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fired {
		return time.Time{}
	}
	e.fired = true
	return t.Add(5 * time.Millisecond)
}

// every fires at a fixed sub-second interval, which cron descriptors cannot express.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "descriptor", expr: "@every 3s"},
		{name: "standard five field", expr: "*/5 * * * *"},
		{name: "hourly descriptor", expr: "@hourly"},
		{name: "empty", expr: "  ", wantErr: true},
		{name: "garbage", expr: "every now and then", wantErr: true},
		{name: "seconds field not supported", expr: "*/5 * * * * *", wantErr: true},
		{name: "february thirtieth never fires", expr: "0 0 30 2 *", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchedule(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			assert.True(t, s.Next(now).After(now))
		})
	}
}

func TestNewRunner_Validation(t *testing.T) {
	sub := &recordingSubmitter{}

	_, err := NewRunner(RunnerOptions{Schedule: "@every 1s", Patients: []string{"p1"}})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Submitter: sub, Schedule: "nope", Patients: []string{"p1"}})
	require.Error(t, err)

	_, err = NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{" ", ""}})
	require.Error(t, err)

	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{" p1 ", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, r.patients)
}

func TestRunner_TickSubmitsEveryPatient(t *testing.T) {
	sub := &recordingSubmitter{errs: map[string]error{
		"busy": apperrors.ErrAlreadyRunning,
	}}
	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{"p1", "busy", "p2"}})
	require.NoError(t, err)

	submitted, err := r.Tick(t.Context())
	require.NoError(t, err, "a patient still in flight is skipped, not an error")
	assert.Equal(t, 2, submitted)
	assert.Equal(t, []string{"p1", "busy", "p2"}, sub.Calls())
}

func TestRunner_TickJoinsFailures(t *testing.T) {
	sub := &recordingSubmitter{errs: map[string]error{
		"p1": apperrors.ErrQueueFull,
	}}
	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{"p1", "p2"}})
	require.NoError(t, err)

	submitted, err := r.Tick(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueueFull)
	assert.Equal(t, 1, submitted, "later patients are still submitted")
}

func TestRunner_TickStopsOnCancel(t *testing.T) {
	sub := &recordingSubmitter{}
	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{"p1", "p2"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	submitted, err := r.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, submitted)
	assert.Empty(t, sub.Calls())
}

func TestRunner_RunFiresOnSchedule(t *testing.T) {
	sub := &recordingSubmitter{}
	rec := &statsd.Recorder{}
	r, err := NewRunner(RunnerOptions{
		Submitter: sub,
		Schedule:  "@every 1s",
		Patients:  []string{"p1"},
		Metrics:   rec,
	})
	require.NoError(t, err)
	r.schedule = every(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sub.Calls()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean stop")
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	ticks := rec.Find("simulator.tick", map[string]string{"result": "success"})
	assert.GreaterOrEqual(t, len(ticks), 3)
	assert.NotEmpty(t, rec.Find("simulator.submitted", nil))
}

func TestRunner_RunReportsDeadline(t *testing.T) {
	sub := &recordingSubmitter{errs: map[string]error{"p1": errors.New("boom")}}
	rec := &statsd.Recorder{}
	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{"p1"}, Metrics: rec})
	require.NoError(t, err)
	r.schedule = every(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	err = r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, rec.Find("simulator.tick", map[string]string{"result": "error"}),
		"failed ticks keep the loop alive and are counted")
}

func TestNewRunner_RejectsScheduleThatNeverFires(t *testing.T) {
	sub := &recordingSubmitter{}
	_, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "0 0 30 2 *", Patients: []string{"p1"}})
	require.ErrorIs(t, err, ErrScheduleNeverFires)
	assert.Empty(t, sub.Calls())
}

func TestRunner_RunStopsWhenScheduleIsExhausted(t *testing.T) {
	sub := &recordingSubmitter{}
	r, err := NewRunner(RunnerOptions{Submitter: sub, Schedule: "@every 1s", Patients: []string{"p1"}})
	require.NoError(t, err)
	r.schedule = &exhausted{}

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	err = r.Run(ctx)
	require.ErrorIs(t, err, ErrScheduleNeverFires)
	assert.Equal(t, []string{"p1"}, sub.Calls(), "one activation, then no busy loop")
}
