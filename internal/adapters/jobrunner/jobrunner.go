// Package jobrunner executes submitted jobs on a managed worker pool and publishes
// each job's result to the event channel.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/job"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/metrics"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// JobType tags every metric the runner emits.
const JobType = "process_patient"

const (
	defaultConcurrency    = 8
	defaultQueueSize      = 1024
	defaultPublishTimeout = 5 * time.Second
)

// RunnerOptions configures the job runner.
type RunnerOptions struct {
	Channel  core.EventChannel
	Executor core.Executor
	// Registry rejects a submission while the same subject has a job in flight.
	// Nil disables deduplication.
	Registry core.JobRegistry
	Topics   model.Topics
	Logger   *slog.Logger
	Metrics  statsd.Sink

	Concurrency    int           // worker goroutines; defaults to 8
	QueueSize      int           // pending jobs before Submit reports ErrQueueFull; defaults to 1024
	ExecTimeout    time.Duration // per-job executor bound; zero means none
	PublishTimeout time.Duration // per-attempt publish bound; defaults to 5s
	Retry          job.RetryPolicy

	// NewID generates job IDs; defaults to random UUIDs.
	NewID func() string
}

// Runner accepts jobs without blocking and runs them on a fixed set of workers.
type Runner struct {
	channel        core.EventChannel
	executor       core.Executor
	registry       core.JobRegistry
	topics         model.Topics
	logger         *slog.Logger
	metrics        statsd.Sink
	execTimeout    time.Duration
	publishTimeout time.Duration
	retry          job.RetryPolicy
	newID          func() string
	workers        int

	// baseCtx parents every execution and publish; Stop cancels it when draining times out.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	queue    chan task
	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type task struct {
	id       string
	key      string
	enqueued time.Time
}

// NewRunner validates options and starts the worker pool.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Channel == nil {
		return nil, errors.New("event channel is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	topics := opts.Topics
	if topics.Channel == "" {
		topics = model.NewTopics("", topics.Mode)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		channel:        opts.Channel,
		executor:       opts.Executor,
		registry:       opts.Registry,
		topics:         topics,
		logger:         logger.With("component", "job_runner"),
		metrics:        opts.Metrics,
		execTimeout:    opts.ExecTimeout,
		publishTimeout: publishTimeout,
		retry:          opts.Retry,
		newID:          newID,
		workers:        workers,
		baseCtx:        baseCtx,
		cancel:         cancel,
		queue:          make(chan task, queueSize),
	}

	r.wg.Add(workers)
	for range workers {
		go r.workerLoop()
	}
	r.logger.Info("job runner started",
		"workers", workers,
		"queue_size", queueSize,
		"dedup", r.registry != nil,
		"topic_mode", topics.Mode,
	)
	return r, nil
}

// Submit validates the request and hands it to the pool. It never waits for the executor.
func (r *Runner) Submit(ctx context.Context, req model.JobRequest) (core.Submission, error) {
	if err := req.Validate(); err != nil {
		return core.Submission{}, err
	}
	if v, ok := r.channel.(core.TopicValidator); ok {
		if err := v.ValidateTopic(r.topics.For(req.SubjectKey)); err != nil {
			return core.Submission{}, err
		}
	}

	t := task{id: r.newID(), key: req.SubjectKey, enqueued: time.Now()}
	if r.registry != nil && !r.registry.TryStart(t.key, t.id) {
		r.emit("rejected", metrics.ResultNoop, 0, apperrors.ErrAlreadyRunning)
		return core.Submission{}, fmt.Errorf("submit %s: %w", t.key, apperrors.ErrAlreadyRunning)
	}

	if err := r.enqueue(t); err != nil {
		if r.registry != nil {
			r.registry.Finish(t.key)
		}
		r.emit("rejected", metrics.ResultError, 0, err)
		r.logger.WarnContext(ctx, "job not accepted", "patient_id", t.key, "error", err)
		return core.Submission{}, fmt.Errorf("submit %s: %w", t.key, err)
	}

	r.emit("queued", metrics.ResultSuccess, 0, nil)
	r.logger.DebugContext(ctx, "job queued", "job_id", t.id, "patient_id", t.key)
	return core.Submission{JobID: t.id, SubjectKey: t.key}, nil
}

func (r *Runner) enqueue(t task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return apperrors.ErrRunnerStopped
	}
	select {
	case r.queue <- t:
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting for a worker.
func (r *Runner) QueueDepth() int {
	return len(r.queue)
}

// Stop stops accepting jobs and waits for queued and running jobs to finish.
// If ctx expires first, in-flight executions and publishes are cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.queue)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		r.logger.Warn("job runner drain timed out; cancelling in-flight jobs", "pending", len(r.queue))
		return fmt.Errorf("stop job runner: %w", ctx.Err())
	}
}

func (r *Runner) workerLoop() {
	defer r.wg.Done()
	for t := range r.queue {
		r.processJob(t)
	}
}

func (r *Runner) processJob(t task) {
	start := time.Now()
	logger := r.logger.With("job_id", t.id, "patient_id", t.key)
	metrics.EmitQueueWait(r.metrics, JobType, start.Sub(t.enqueued))

	data, execErr := r.execute(t)

	result := model.CompletedResult(t.key, data)
	if execErr != nil {
		result = model.FailedResult(t.key, execErr)
		logger.Warn("job failed", "error", execErr, "duration", time.Since(start))
		r.emit("failed", metrics.ResultError, time.Since(start), execErr)
	} else {
		logger.Debug("job completed", "duration", time.Since(start))
		r.emit("completed", metrics.ResultSuccess, time.Since(start), nil)
	}

	// The subject is free again once its result exists, so a client reacting to
	// the published result can resubmit immediately.
	if r.registry != nil {
		r.registry.Finish(t.key)
	}

	payload, err := result.Encode()
	if err != nil {
		logger.Error("encode job result", "error", err)
		return
	}

	publishStart := time.Now()
	attempts, err := r.publish(t, payload)
	metrics.EmitPublish(r.metrics, metrics.PublishMetric{
		JobType:  JobType,
		Attempts: attempts,
		Duration: time.Since(publishStart),
		Err:      err,
	})
	if err != nil {
		// Best-effort delivery: the result is dropped.
		logger.Error("publish job result", "error", err, "attempts", attempts, "topic", r.topics.For(t.key))
		return
	}
	logger.Info("job result published", "status", result.Status, "attempts", attempts)
}

// execute runs the executor on the worker goroutine and converts panics into errors.
func (r *Runner) execute(t task) (data string, err error) {
	ctx := r.baseCtx
	if r.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.execTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &apperrors.ExecutorError{
				SubjectKey: t.key,
				Panicked:   true,
				Cause:      fmt.Errorf("%v", rec),
			}
		}
	}()

	data, err = r.executor.Execute(ctx, t.key)
	if err != nil {
		return "", &apperrors.ExecutorError{SubjectKey: t.key, Cause: err}
	}
	return data, nil
}

func (r *Runner) publish(t task, payload []byte) (int, error) {
	topic := r.topics.For(t.key)
	attempt := 1
	for {
		ctx, cancel := context.WithTimeout(r.baseCtx, r.publishTimeout)
		err := r.channel.Publish(ctx, topic, payload)
		cancel()
		if err == nil {
			return attempt, nil
		}

		decision := r.retry.Next(attempt)
		if !decision.Retry || r.baseCtx.Err() != nil {
			return attempt, err
		}
		r.logger.Warn("publish failed; retrying",
			"job_id", t.id,
			"attempt", attempt,
			"backoff", decision.Delay,
			"error", err,
		)

		timer := time.NewTimer(decision.Delay)
		select {
		case <-r.baseCtx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
		attempt++
	}
}

func (r *Runner) emit(transition, result string, d time.Duration, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobType:    JobType,
		Transition: transition,
		Result:     result,
		Duration:   d,
		Err:        err,
	})
}

var _ core.JobSubmitter = (*Runner)(nil)
