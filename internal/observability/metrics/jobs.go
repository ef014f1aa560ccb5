// Package metrics standardises the metric names and tags emitted by the job runner and relays.
package metrics

import (
	"time"

	obserrors "github.com/gittidev/vibe-socket-test/internal/observability/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitQueueWait records how long a job sat in the queue before a worker picked it up.
func EmitQueueWait(sink statsd.Sink, jobType string, wait time.Duration) {
	if sink == nil || wait < 0 {
		return
	}
	sink.Timing("job.queue_wait", wait, map[string]string{"job_type": jobType})
}

// PublishMetric describes the outcome of publishing one job result.
type PublishMetric struct {
	JobType  string
	Attempts int
	Duration time.Duration
	Err      error
}

// EmitPublish counts publish outcomes and retries.
func EmitPublish(sink statsd.Sink, in PublishMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"job_type": in.JobType, "result": ResultSuccess}
	if in.Err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("job.publish", 1, tags)
	if in.Attempts > 1 {
		sink.Count("job.publish_retries", int64(in.Attempts-1), map[string]string{"job_type": in.JobType})
	}
	if in.Duration > 0 {
		sink.Timing("job.publish_duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
