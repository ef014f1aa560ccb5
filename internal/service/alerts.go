package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/domain/patient"
	"github.com/gittidev/vibe-socket-test/internal/observability/metrics"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// DefaultResubscribeDelay is the pause before a failed result subscription is reopened.
const DefaultResubscribeDelay = time.Second

// AlertMonitorOptions groups dependencies for AlertMonitor.
type AlertMonitorOptions struct {
	Channel          core.EventChannel // Required
	Roster           *patient.Roster   // Required: ward lookup, and the subjects followed in per-subject mode
	Rules            *alert.RuleStore  // Required
	Extractor        *alert.Extractor  // Required
	Evaluator        *alert.Evaluator  // Optional: defaults to the builtin rules
	Topics           model.Topics
	PollInterval     time.Duration
	ResubscribeDelay time.Duration
	PublishTimeout   time.Duration
	Logger           *slog.Logger
	Metrics          statsd.Sink
	Now              func() time.Time // Optional: sample time when the data carries none
}

// AlertMonitor follows published job results, evaluates their vitals against the
// alert rules and publishes alert events on the alert topics.
type AlertMonitor struct {
	channel          core.EventChannel
	roster           *patient.Roster
	rules            *alert.RuleStore
	extractor        *alert.Extractor
	evaluator        *alert.Evaluator
	topics           model.Topics
	poll             time.Duration
	resubscribeDelay time.Duration
	publishTimeout   time.Duration
	logger           *slog.Logger
	metrics          statsd.Sink
	now              func() time.Time
}

// NewAlertMonitor validates options and returns an idle monitor.
func NewAlertMonitor(opts AlertMonitorOptions) (*AlertMonitor, error) {
	switch {
	case opts.Channel == nil:
		return nil, errors.New("alert monitor: event channel is required")
	case opts.Roster == nil:
		return nil, errors.New("alert monitor: roster is required")
	case opts.Rules == nil:
		return nil, errors.New("alert monitor: rule store is required")
	case opts.Extractor == nil:
		return nil, errors.New("alert monitor: extractor is required")
	}
	evaluator := opts.Evaluator
	if evaluator == nil {
		evaluator = alert.NewEvaluator(alert.EvaluatorOptions{})
	}
	topics := opts.Topics
	if topics.Channel == "" {
		topics = model.NewTopics("", topics.Mode)
	}
	delay := opts.ResubscribeDelay
	if delay <= 0 {
		delay = DefaultResubscribeDelay
	}
	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AlertMonitor{
		channel:          opts.Channel,
		roster:           opts.Roster,
		rules:            opts.Rules,
		extractor:        opts.Extractor,
		evaluator:        evaluator,
		topics:           topics,
		poll:             opts.PollInterval,
		resubscribeDelay: delay,
		publishTimeout:   publishTimeout,
		logger:           logger.With("component", "alert_monitor"),
		metrics:          opts.Metrics,
		now:              now,
	}, nil
}

// Sources returns the result topics the monitor follows: the shared topic, or one
// topic per roster patient in per-subject mode.
func (m *AlertMonitor) Sources() []string {
	if !m.topics.PerSubject() {
		return []string{m.topics.Channel}
	}
	ids := m.roster.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = m.topics.For(id)
	}
	return out
}

// Run follows every source until ctx is cancelled. Subscription failures are retried.
func (m *AlertMonitor) Run(ctx context.Context) error {
	sources := m.Sources()
	m.logger.InfoContext(ctx, "alert monitor started", "sources", len(sources), "mode", string(m.topics.Mode))

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range sources {
		g.Go(func() error {
			m.follow(gctx, topic)
			return nil
		})
	}
	err := g.Wait()
	m.logger.Info("alert monitor stopped")
	return err
}

func (m *AlertMonitor) follow(ctx context.Context, topic string) {
	for ctx.Err() == nil {
		if err := m.consume(ctx, topic); err != nil && ctx.Err() == nil {
			m.logger.WarnContext(ctx, "alert source failed, resubscribing",
				"topic", topic, "delay", m.resubscribeDelay.String(), "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.resubscribeDelay):
		}
	}
}

func (m *AlertMonitor) consume(ctx context.Context, topic string) error {
	session, err := OpenSession(ctx, m.channel, topic, SessionOptions{PollInterval: m.poll, Logger: m.logger})
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	for msg, err := range session.Receive(ctx) {
		if err != nil {
			return err
		}
		m.Handle(ctx, msg.Payload)
	}
	return nil
}

// Handle evaluates one result payload. Failed results and data without any known
// metric are skipped.
func (m *AlertMonitor) Handle(ctx context.Context, payload []byte) {
	result, err := model.DecodeJobResult(payload)
	if err != nil || result.Status != model.JobStatusCompleted || result.SubjectKey == "" {
		metrics.EmitAlertEvaluation(m.metrics, metrics.AlertMetric{Result: metrics.ResultNoop})
		return
	}
	doc, ok := alert.ParseData(result.Data)
	if !ok {
		metrics.EmitAlertEvaluation(m.metrics, metrics.AlertMetric{Result: metrics.ResultNoop})
		return
	}
	reading := m.extractor.Extract(doc)
	if len(reading) == 0 {
		metrics.EmitAlertEvaluation(m.metrics, metrics.AlertMetric{Result: metrics.ResultNoop})
		return
	}
	at, ok := m.extractor.Timestamp(doc)
	if !ok {
		at = m.now()
	}

	key := result.SubjectKey
	thresholds := m.rules.Resolve(key, m.roster.Ward(key))
	out := m.evaluator.Evaluate(key, thresholds, reading, at)

	in := metrics.AlertMetric{Result: metrics.ResultSuccess}
	if out.Alert != nil {
		in.Raised = make(map[string]int, len(out.Alert.Items))
		for _, item := range out.Alert.Items {
			in.Raised[string(item.Severity)]++
		}
	}
	if out.Resolved != nil {
		in.Resolved = len(out.Resolved.Keys)
	}
	if err := m.publish(ctx, key, out); err != nil {
		in.Result, in.Err = metrics.ResultError, err
		m.logger.ErrorContext(ctx, "publish alert", "patient_id", key, "error", err)
	}
	metrics.EmitAlertEvaluation(m.metrics, in)
}

func (m *AlertMonitor) publish(ctx context.Context, key string, out alert.Outcome) error {
	if out.Empty() {
		return nil
	}
	topic := m.topics.Alerts(key)
	pubCtx, cancel := context.WithTimeout(ctx, m.publishTimeout)
	defer cancel()

	var errs []error
	if out.Alert != nil {
		errs = append(errs, m.send(pubCtx, topic, out.Alert.Encode))
		m.logger.InfoContext(ctx, "alert raised", "patient_id", key, "alerts", out.Alert.Alerts)
	}
	if out.Resolved != nil {
		errs = append(errs, m.send(pubCtx, topic, out.Resolved.Encode))
		m.logger.InfoContext(ctx, "alert resolved", "patient_id", key, "keys", out.Resolved.Keys)
	}
	return errors.Join(errs...)
}

func (m *AlertMonitor) send(ctx context.Context, topic string, encode func() ([]byte, error)) error {
	payload, err := encode()
	if err != nil {
		return err
	}
	if err := m.channel.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
