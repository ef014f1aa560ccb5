package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/adapters/memory"
	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/domain/patient"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

type monitorFixture struct {
	channel core.EventChannel
	rules   *alert.RuleStore
	metrics *statsd.Recorder
	monitor *AlertMonitor
}

func newMonitorFixture(t *testing.T, channel core.EventChannel, topics model.Topics) *monitorFixture {
	t.Helper()
	roster, err := patient.LoadRoster("")
	require.NoError(t, err)
	extractor, err := alert.NewExtractor(alert.DefaultPaths(), nil)
	require.NoError(t, err)

	f := &monitorFixture{
		channel: channel,
		rules:   alert.NewRuleStore(alert.DefaultThresholds()),
		metrics: &statsd.Recorder{},
	}
	f.monitor, err = NewAlertMonitor(AlertMonitorOptions{
		Channel:          channel,
		Roster:           roster,
		Rules:            f.rules,
		Extractor:        extractor,
		Topics:           topics,
		PollInterval:     10 * time.Millisecond,
		ResubscribeDelay: 10 * time.Millisecond,
		Metrics:          f.metrics,
		Now:              testutil.FixedTimeFunc(testutil.TestTime()),
	})
	require.NoError(t, err)
	return f
}

func (f *monitorFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("alert monitor did not stop")
		}
	})
}

func vitalsResult(t *testing.T, key, data string) []byte {
	t.Helper()
	b, err := model.CompletedResult(key, data).Encode()
	require.NoError(t, err)
	return b
}

func subscribeTopic(t *testing.T, ch core.EventChannel, topic string) core.Subscription {
	t.Helper()
	sub, err := ch.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func nextEvent(t *testing.T, sub core.Subscription) map[string]any {
	t.Helper()
	msg, ok, err := sub.Next(context.Background(), 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok, "no event on %s", sub.Topic())
	var event map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	return event
}

func assertQuiet(t *testing.T, sub core.Subscription) {
	t.Helper()
	msg, ok, err := sub.Next(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "unexpected event %s", msg.Payload)
}

func TestNewAlertMonitor_RequiresDependencies(t *testing.T) {
	_, err := NewAlertMonitor(AlertMonitorOptions{})
	require.ErrorContains(t, err, "event channel is required")

	_, err = NewAlertMonitor(AlertMonitorOptions{Channel: newMemoryChannel(t)})
	require.ErrorContains(t, err, "roster is required")
}

func TestAlertMonitor_RaisesAndResolves(t *testing.T) {
	ch := newMemoryChannel(t)
	f := newMonitorFixture(t, ch, model.NewTopics("", model.TopicModeShared))
	alerts := subscribeTopic(t, ch, model.DefaultChannel+"_alerts")
	f.start(t)
	waitForSubscribers(t, ch, model.DefaultChannel, 1)

	ctx := context.Background()
	require.NoError(t, ch.Publish(ctx, model.DefaultChannel,
		vitalsResult(t, "p001", `{"hr":150,"sbp":120,"spo2":97,"temp":36.9,"rr":16}`)))

	event := nextEvent(t, alerts)
	assert.Equal(t, "alert", event["type"])
	assert.Equal(t, "p001", event["patientId"])
	assert.Equal(t, []any{"High HR 150 (> 120)"}, event["alerts"])
	assert.InDelta(t, testutil.TestTime().UnixMilli(), event["timestamp"], 0)
	items := event["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "p001:hr:high", items[0].(map[string]any)["key"])

	require.NoError(t, ch.Publish(ctx, model.DefaultChannel,
		vitalsResult(t, "p001", `{"hr":82,"sbp":120,"spo2":97,"temp":36.9,"rr":16,"timestamp":1700000000000}`)))

	event = nextEvent(t, alerts)
	assert.Equal(t, "alert_resolved", event["type"])
	assert.Equal(t, []any{"HR back to 82"}, event["resolved"])
	assert.Equal(t, []any{"p001:hr:high"}, event["keys"])
	assert.InDelta(t, 1700000000000, event["timestamp"], 0)

	assert.Len(t, f.metrics.Find("alert.raised", map[string]string{"severity": "warning"}), 1)
	assert.Len(t, f.metrics.Find("alert.resolved", nil), 1)
}

func TestAlertMonitor_SkipsResultsWithoutVitals(t *testing.T) {
	ch := newMemoryChannel(t)
	f := newMonitorFixture(t, ch, model.NewTopics("", model.TopicModeShared))
	alerts := subscribeTopic(t, ch, model.DefaultChannel+"_alerts")
	ctx := context.Background()

	failed, err := model.FailedResult("p001", errors.New("hr 300")).Encode()
	require.NoError(t, err)
	f.monitor.Handle(ctx, failed)
	f.monitor.Handle(ctx, vitalsResult(t, "p001", "Vital signs stable."))
	f.monitor.Handle(ctx, vitalsResult(t, "p001", `{"bp":"120/80"}`))
	f.monitor.Handle(ctx, []byte("garbage"))

	assertQuiet(t, alerts)
	assert.Len(t, f.metrics.Find("alert.evaluation", map[string]string{"result": "noop"}), 4)
}

func TestAlertMonitor_UsesWardAndPatientScopes(t *testing.T) {
	ch := newMemoryChannel(t)
	f := newMonitorFixture(t, ch, model.NewTopics("", model.TopicModeShared))
	alerts := subscribeTopic(t, ch, model.DefaultChannel+"_alerts")
	ctx := context.Background()

	f.rules.SetWard("ICU", alert.Thresholds{HRHigh: alert.Limit(100)})
	f.rules.SetPatient("p002", alert.Thresholds{HRHigh: alert.Limit(115)})

	f.monitor.Handle(ctx, vitalsResult(t, "p003", `{"hr":110}`))
	assertQuiet(t, alerts)

	f.monitor.Handle(ctx, vitalsResult(t, "p002", `{"hr":110}`))
	assertQuiet(t, alerts)

	f.monitor.Handle(ctx, vitalsResult(t, "p001", `{"hr":110}`))
	event := nextEvent(t, alerts)
	assert.Equal(t, []any{"High HR 110 (> 100)"}, event["alerts"])
}

func TestAlertMonitor_PerSubjectTopics(t *testing.T) {
	ch := newMemoryChannel(t)
	topics := model.NewTopics("vitals", model.TopicModePerSubject)
	f := newMonitorFixture(t, ch, topics)
	assert.Equal(t, []string{"vitals.p001", "vitals.p002", "vitals.p003"}, f.monitor.Sources())

	alerts := subscribeTopic(t, ch, "vitals_alerts.p002")
	f.start(t)
	waitForSubscribers(t, ch, "vitals.p002", 1)

	require.NoError(t, ch.Publish(context.Background(), "vitals.p002", vitalsResult(t, "p002", `{"spo2":86}`)))
	event := nextEvent(t, alerts)
	assert.Equal(t, "p002", event["patientId"])
	assert.Equal(t, []any{"Low SpO2 86% (< 90%)"}, event["alerts"])
}

// flakyChannel fails the first subscribes and every publish to failTopic.
type flakyChannel struct {
	*memory.Channel
	subscribeFailures atomic.Int32
	failTopic         string
}

func (c *flakyChannel) Subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	if c.subscribeFailures.Add(-1) >= 0 {
		return nil, errors.New("broker down")
	}
	return c.Channel.Subscribe(ctx, topic)
}

func (c *flakyChannel) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == c.failTopic {
		return errors.New("broker down")
	}
	return c.Channel.Publish(ctx, topic, payload)
}

func TestAlertMonitor_ResubscribesAfterFailure(t *testing.T) {
	ch := &flakyChannel{Channel: newMemoryChannel(t)}
	ch.subscribeFailures.Store(2)
	f := newMonitorFixture(t, ch, model.NewTopics("", model.TopicModeShared))
	alerts := subscribeTopic(t, ch.Channel, model.DefaultChannel+"_alerts")
	f.start(t)
	waitForSubscribers(t, ch.Channel, model.DefaultChannel, 1)

	require.NoError(t, ch.Publish(context.Background(), model.DefaultChannel, vitalsResult(t, "p003", `{"rr":35}`)))
	event := nextEvent(t, alerts)
	assert.Equal(t, "p003", event["patientId"])
}

func TestAlertMonitor_PublishFailureIsCounted(t *testing.T) {
	ch := &flakyChannel{Channel: newMemoryChannel(t), failTopic: model.DefaultChannel + "_alerts"}
	f := newMonitorFixture(t, ch, model.NewTopics("", model.TopicModeShared))

	f.monitor.Handle(context.Background(), vitalsResult(t, "p001", `{"temp":40.1}`))

	failed := f.metrics.Find("alert.evaluation", map[string]string{"result": "error"})
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].Tags["error_class"])
	assert.Len(t, f.metrics.Find("alert.raised", map[string]string{"severity": "critical"}), 1)
}
