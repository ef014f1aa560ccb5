package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/metrics"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// RelayHubOptions configure the hub.
type RelayHubOptions struct {
	Channel      core.EventChannel
	Topics       model.Topics
	PollInterval time.Duration
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// Stream selects which event family a client follows.
type Stream string

const (
	// StreamResults carries job results. It is the default.
	StreamResults Stream = "results"
	// StreamAlerts carries alert and alert_resolved events.
	StreamAlerts Stream = "alerts"
)

// StreamRequest describes what a connecting client wants to follow.
type StreamRequest struct {
	// SubjectKey limits delivery to one subject. Empty means every subject, which
	// only works when all results share one topic.
	SubjectKey string
	Stream     Stream
}

// RelayHub tracks every live relay so shutdown can drain them.
type RelayHub struct {
	channel core.EventChannel
	topics  model.Topics
	poll    time.Duration
	logger  *slog.Logger
	metrics statsd.Sink

	mu     sync.Mutex
	relays map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewRelayHub validates options and returns an empty hub.
func NewRelayHub(opts RelayHubOptions) (*RelayHub, error) {
	if opts.Channel == nil {
		return nil, fmt.Errorf("relay hub: event channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topics := opts.Topics
	if topics.Channel == "" {
		topics = model.NewTopics("", topics.Mode)
	}
	return &RelayHub{
		channel: opts.Channel,
		topics:  topics,
		poll:    opts.PollInterval,
		logger:  logger.With("component", "relay_hub"),
		metrics: opts.Metrics,
		relays:  make(map[string]context.CancelFunc),
	}, nil
}

// Resolve maps a stream request onto a topic and an optional subject filter.
func (h *RelayHub) Resolve(req StreamRequest) (topic, filter string, err error) {
	if req.Stream == StreamAlerts {
		topic, err = h.topics.AlertSubscription(req.SubjectKey)
	} else {
		topic, err = h.topics.Subscription(req.SubjectKey)
	}
	if err != nil {
		return "", "", err
	}
	if req.SubjectKey != "" && !h.topics.PerSubject() {
		if err := model.ValidateSubjectKey(req.SubjectKey); err != nil {
			return "", "", err
		}
		filter = req.SubjectKey
	}
	if v, ok := h.channel.(core.TopicValidator); ok {
		if err := v.ValidateTopic(topic); err != nil {
			return "", "", err
		}
	}
	return topic, filter, nil
}

// Serve runs one relay for the request and blocks until it is closed.
func (h *RelayHub) Serve(ctx context.Context, req StreamRequest, accept AcceptFunc) error {
	topic, filter, err := h.Resolve(req)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("relay hub shutting down: %w", apperrors.ErrUnavailable)
	}
	h.relays[id] = cancel
	h.wg.Add(1)
	active := len(h.relays)
	h.mu.Unlock()
	metrics.EmitRelayActive(h.metrics, active)

	defer func() {
		h.mu.Lock()
		delete(h.relays, id)
		active := len(h.relays)
		h.mu.Unlock()
		metrics.EmitRelayActive(h.metrics, active)
		h.wg.Done()
	}()

	relay := NewRelay(RelayOptions{
		ID:            id,
		Channel:       h.channel,
		Topic:         topic,
		SubjectFilter: filter,
		PollInterval:  h.poll,
		Logger:        h.logger,
		Metrics:       h.metrics,
	})
	return relay.Run(relayCtx, accept)
}

// Active returns the number of live relays.
func (h *RelayHub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.relays)
}

// Shutdown refuses new relays, cancels live ones and waits until each has closed its
// session and connection or ctx expires.
func (h *RelayHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	count := len(h.relays)
	for _, cancel := range h.relays {
		cancel()
	}
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "draining relays", "active", count)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay hub shutdown: %w", ctx.Err())
	}
}
