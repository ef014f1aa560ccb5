// Package scheduler drives simulated patient submissions on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	obserrors "github.com/gittidev/vibe-socket-test/internal/observability/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/metrics"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// ErrScheduleNeverFires is returned for expressions with no future activation, such as "0 0 30 2 *".
var ErrScheduleNeverFires = errors.New("schedule never fires")

var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule accepts five-field cron expressions and descriptors such as "@every 3s".
// Sub-second @every intervals are rounded up to one second.
//
//nolint:ireturn // cron.Schedule is the library's own abstraction.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("schedule expression is required")
	}
	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule expression %q: %w", clean, err)
	}
	if schedule.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("invalid schedule expression %q: %w", clean, ErrScheduleNeverFires)
	}
	return schedule, nil
}

// Runner periodically submits a processing job for every configured patient.
type Runner struct {
	submitter core.JobSubmitter
	schedule  cron.Schedule
	patients  []string
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Submitter core.JobSubmitter
	Schedule  string
	Patients  []string
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// NewRunner validates opts and parses the schedule.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Submitter == nil {
		return nil, errors.New("job submitter is required")
	}
	schedule, err := ParseSchedule(opts.Schedule)
	if err != nil {
		return nil, err
	}
	patients := make([]string, 0, len(opts.Patients))
	for _, p := range opts.Patients {
		if p = strings.TrimSpace(p); p != "" {
			patients = append(patients, p)
		}
	}
	if len(patients) == 0 {
		return nil, errors.New("at least one patient id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		submitter: opts.Submitter,
		schedule:  schedule,
		patients:  patients,
		logger:    logger.With("component", "simulator"),
		metrics:   opts.Metrics,
	}, nil
}

// Run fires Tick at every scheduled time until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting simulator", "patients", len(r.patients))

	wait, err := r.untilNext()
	if err != nil {
		return err
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "simulator stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-timer.C:
			start := time.Now()
			submitted, err := r.Tick(ctx)
			r.emitTickMetrics(submitted, time.Since(start), err)

			if err != nil {
				r.logger.WarnContext(ctx, "simulator tick error", "error", err)
				// keep going; the next tick may succeed
			} else if submitted > 0 {
				r.logger.DebugContext(ctx, "simulator submitted jobs", "count", submitted)
			}
			wait, err := r.untilNext()
			if err != nil {
				r.logger.ErrorContext(ctx, "simulator stopping", "error", err)
				return err
			}
			timer.Reset(wait)
		}
	}
}

// untilNext returns the delay before the next activation. A zero activation time
// means the schedule has no future run.
func (r *Runner) untilNext() (time.Duration, error) {
	next := r.schedule.Next(time.Now())
	if next.IsZero() {
		return 0, ErrScheduleNeverFires
	}
	return time.Until(next), nil
}

// Tick submits one job per patient. Patients that already have a job in flight are
// skipped; other failures are joined into the returned error.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	var (
		submitted int
		errs      []error
	)
	for _, patient := range r.patients {
		if ctx.Err() != nil {
			break
		}
		_, err := r.submitter.Submit(ctx, model.JobRequest{SubjectKey: patient})
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, apperrors.ErrAlreadyRunning):
			r.logger.DebugContext(ctx, "patient still processing, skipped", "patient_id", patient)
		default:
			errs = append(errs, fmt.Errorf("submit %s: %w", patient, err))
		}
	}
	return submitted, errors.Join(errs...)
}

func (r *Runner) emitTickMetrics(submitted int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if submitted == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("simulator.tick", 1, tags)

	if submitted > 0 {
		r.metrics.Count("simulator.submitted", int64(submitted), tags)
	}

	if elapsed > 0 {
		r.metrics.Timing("simulator.tick_duration", elapsed, metrics.CloneTags(tags))
	}
}
