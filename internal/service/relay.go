package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	"github.com/gittidev/vibe-socket-test/internal/observability/metrics"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// ErrConnClosed is returned by Conn implementations when the client has gone away.
var ErrConnClosed = errors.New("connection closed")

// Conn is one live client stream a relay writes to.
type Conn interface {
	// WriteText sends one text frame.
	WriteText(ctx context.Context, payload []byte) error
	// Done is closed when the client disconnects or the connection fails.
	Done() <-chan struct{}
	// Close ends the stream. It is idempotent.
	Close() error
}

// AcceptFunc completes the client handshake once the relay has subscribed.
type AcceptFunc func() (Conn, error)

// RelayState is the lifecycle position of a relay.
type RelayState int32

const (
	RelayConnecting RelayState = iota
	RelaySubscribing
	RelayRelaying
	RelayClosing
	RelayClosed
)

func (s RelayState) String() string {
	switch s {
	case RelayConnecting:
		return "connecting"
	case RelaySubscribing:
		return "subscribing"
	case RelayRelaying:
		return "relaying"
	case RelayClosing:
		return "closing"
	case RelayClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Close reasons reported in logs and metrics.
const (
	ReasonSubscribeFailed  = "subscribe_failed"
	ReasonAcceptFailed     = "accept_failed"
	ReasonClientDisconnect = "client_disconnect"
	ReasonWriteFailed      = "write_failed"
	ReasonChannelError     = "channel_error"
	ReasonShutdown         = "shutdown"
	ReasonPanic            = "panic"
)

// RelayOptions configure a single relay.
type RelayOptions struct {
	ID      string
	Channel core.EventChannel
	Topic   string
	// SubjectFilter, when set, drops results for other subjects.
	SubjectFilter string
	PollInterval  time.Duration
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// Relay binds one subscription session to one client connection.
type Relay struct {
	id      string
	channel core.EventChannel
	topic   string
	filter  string
	poll    time.Duration
	logger  *slog.Logger
	metrics statsd.Sink
	state   atomic.Int32
}

// NewRelay builds a relay in the Connecting state.
func NewRelay(opts RelayOptions) *Relay {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		id:      opts.ID,
		channel: opts.Channel,
		topic:   opts.Topic,
		filter:  opts.SubjectFilter,
		poll:    opts.PollInterval,
		metrics: opts.Metrics,
	}
	r.logger = logger.With("component", "relay", "relay_id", opts.ID, "topic", opts.Topic)
	return r
}

// ID returns the relay identifier.
func (r *Relay) ID() string { return r.id }

// State returns the current lifecycle state.
func (r *Relay) State() RelayState { return RelayState(r.state.Load()) }

func (r *Relay) transition(to RelayState, reason string, err error) {
	r.state.Store(int32(to))
	metrics.EmitRelayTransition(r.metrics, metrics.RelayMetric{State: to.String(), Reason: reason, Err: err})
}

// Run subscribes, accepts the client, then forwards messages until the client leaves,
// the channel fails or ctx is cancelled. The session is always closed before the
// connection. A subscribe failure is returned before accept is called so the
// handshake can be refused.
func (r *Relay) Run(ctx context.Context, accept AcceptFunc) error {
	r.transition(RelaySubscribing, "", nil)
	session, err := OpenSession(ctx, r.channel, r.topic, SessionOptions{PollInterval: r.poll, Logger: r.logger})
	if err != nil {
		r.transition(RelayClosed, ReasonSubscribeFailed, err)
		r.logger.WarnContext(ctx, "relay subscribe failed", "error", err)
		return err
	}

	conn, err := acceptGuarded(accept)
	if err != nil {
		r.transition(RelayClosing, ReasonAcceptFailed, err)
		closeErr := session.Close()
		r.transition(RelayClosed, ReasonAcceptFailed, nil)
		return errors.Join(fmt.Errorf("accept client: %w", err), closeErr)
	}

	r.transition(RelayRelaying, "", nil)
	r.logger.DebugContext(ctx, "relay started", "filter", r.filter)

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-relayCtx.Done():
		}
	}()

	reason, pumpErr := r.pump(relayCtx, session, conn)
	if reason == "" {
		reason = ReasonShutdown
		select {
		case <-conn.Done():
			reason = ReasonClientDisconnect
		default:
		}
	}

	r.transition(RelayClosing, reason, pumpErr)
	closeErr := errors.Join(session.Close(), conn.Close())
	r.transition(RelayClosed, reason, nil)

	switch {
	case pumpErr != nil:
		r.logger.WarnContext(ctx, "relay closed", "reason", reason, "error", pumpErr)
	default:
		r.logger.DebugContext(ctx, "relay closed", "reason", reason)
	}
	if closeErr != nil {
		r.logger.WarnContext(ctx, "relay cleanup failed", "error", closeErr)
	}
	return errors.Join(pumpErr, closeErr)
}

// acceptGuarded turns a panicking handshake into an error so the caller still
// releases the subscription opened for it.
func acceptGuarded(accept AcceptFunc) (conn Conn, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			conn, err = nil, fmt.Errorf("accept panic: %v", rec)
		}
	}()
	return accept()
}

// pump forwards messages and returns why it stopped. An empty reason means the
// receive loop ended because ctx was cancelled.
func (r *Relay) pump(ctx context.Context, session *Session, conn Conn) (reason string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reason, err = ReasonPanic, fmt.Errorf("relay panic: %v", rec)
		}
	}()

	for msg, recvErr := range session.Receive(ctx) {
		if recvErr != nil {
			return ReasonChannelError, recvErr
		}
		if !r.matches(msg) {
			metrics.EmitRelayDelivered(r.metrics, true)
			continue
		}
		if writeErr := conn.WriteText(ctx, msg.Payload); writeErr != nil {
			if errors.Is(writeErr, ErrConnClosed) || ctx.Err() != nil {
				return ReasonClientDisconnect, nil
			}
			return ReasonWriteFailed, fmt.Errorf("write to client: %w", writeErr)
		}
		metrics.EmitRelayDelivered(r.metrics, false)
	}
	return "", nil
}

func (r *Relay) matches(msg model.Message) bool {
	if r.filter == "" {
		return true
	}
	key, err := model.PeekSubjectKey(msg.Payload)
	if err != nil {
		r.logger.Debug("dropping undecodable message", "error", err)
		return false
	}
	return key == r.filter
}
