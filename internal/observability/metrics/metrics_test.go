package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

func TestEmitJobLifecycle(t *testing.T) {
	var rec statsd.Recorder
	EmitJobLifecycle(&rec, JobMetric{
		JobType:    "process_patient",
		Transition: "failed",
		Result:     ResultError,
		Duration:   20 * time.Millisecond,
		Err:        errors.New("boom"),
	})

	counts := rec.Find("job.transition", map[string]string{"transition": "failed", "result": ResultError})
	require.Len(t, counts, 1)
	assert.NotEmpty(t, counts[0].Tags["error_class"])
	assert.Len(t, rec.Find("job.duration", nil), 1)
}

func TestEmitJobLifecycle_NoDurationNoTiming(t *testing.T) {
	var rec statsd.Recorder
	EmitJobLifecycle(&rec, JobMetric{JobType: "process_patient", Transition: "queued", Result: ResultSuccess})
	assert.Len(t, rec.Find("job.transition", nil), 1)
	assert.Empty(t, rec.Find("job.duration", nil))
}

func TestEmitPublish(t *testing.T) {
	var rec statsd.Recorder
	EmitPublish(&rec, PublishMetric{JobType: "process_patient", Attempts: 3, Err: apperrors.ErrUnavailable})

	pub := rec.Find("job.publish", map[string]string{"result": ResultError})
	require.Len(t, pub, 1)
	assert.Equal(t, "unavailable", pub[0].Tags["error_class"])

	retries := rec.Find("job.publish_retries", nil)
	require.Len(t, retries, 1)
	assert.InDelta(t, 2, retries[0].Value, 0)
}

func TestEmitRelay(t *testing.T) {
	var rec statsd.Recorder
	EmitRelayTransition(&rec, RelayMetric{State: "closed", Reason: "client_disconnect"})
	EmitRelayActive(&rec, 4)
	EmitRelayDelivered(&rec, true)

	require.Len(t, rec.Find("relay.transition", map[string]string{"reason": "client_disconnect"}), 1)
	active := rec.Find("relay.active", nil)
	require.Len(t, active, 1)
	assert.InDelta(t, 4, active[0].Value, 0)
	assert.Len(t, rec.Find("relay.message", map[string]string{"result": ResultNoop}), 1)
}

func TestNilSinkIsSafe(t *testing.T) {
	EmitJobLifecycle(nil, JobMetric{})
	EmitQueueWait(nil, "x", time.Second)
	EmitPublish(nil, PublishMetric{})
	EmitRelayTransition(nil, RelayMetric{})
	EmitRelayActive(nil, 1)
	EmitRelayDelivered(nil, false)
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1", "": "x"}
	out := CloneTags(src)
	assert.Equal(t, map[string]string{"a": "1"}, out)
	out["a"] = "2"
	assert.Equal(t, "1", src["a"])
}

func TestEmitAlertEvaluation(t *testing.T) {
	var rec statsd.Recorder
	EmitAlertEvaluation(&rec, AlertMetric{
		Result:   ResultSuccess,
		Raised:   map[string]int{"warning": 2, "critical": 0},
		Resolved: 1,
	})
	EmitAlertEvaluation(&rec, AlertMetric{Result: ResultError, Err: apperrors.ErrUnavailable})
	EmitAlertEvaluation(nil, AlertMetric{Result: ResultNoop})

	require.Len(t, rec.Find("alert.evaluation", map[string]string{"result": ResultSuccess}), 1)
	failed := rec.Find("alert.evaluation", map[string]string{"result": ResultError})
	require.Len(t, failed, 1)
	assert.Equal(t, "unavailable", failed[0].Tags["error_class"])

	raised := rec.Find("alert.raised", nil)
	require.Len(t, raised, 1)
	assert.Equal(t, "warning", raised[0].Tags["severity"])
	assert.InDelta(t, 2, raised[0].Value, 0)
	assert.Len(t, rec.Find("alert.resolved", nil), 1)
}
