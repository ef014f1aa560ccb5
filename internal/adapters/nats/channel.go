// Package nats implements the event channel on NATS core pub/sub subjects.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// ChannelOptions configure the NATS event channel.
type ChannelOptions struct {
	Conn   *nats.Conn
	Logger *slog.Logger
	// FlushTimeout bounds the server round trip used to confirm publishes and subscriptions
	// when the caller's context carries no deadline.
	FlushTimeout time.Duration
}

// Channel maps topics one-to-one onto NATS subjects.
type Channel struct {
	nc           *nats.Conn
	logger       *slog.Logger
	flushTimeout time.Duration
}

// NewChannel wraps a connected client. Close drains and closes it.
func NewChannel(opts ChannelOptions) (*Channel, error) {
	if opts.Conn == nil {
		return nil, errors.New("nats connection is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = 5 * time.Second
	}
	return &Channel{
		nc:           opts.Conn,
		logger:       logger.With("component", "nats_channel"),
		flushTimeout: flush,
	}, nil
}

// Publish sends payload to subject topic and flushes so broker errors surface here.
func (c *Channel) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := c.nc.Publish(topic, payload); err != nil {
		return mapError("nats publish", err)
	}
	if err := c.flush(ctx); err != nil {
		return mapError("nats publish flush", err)
	}
	return nil
}

// Subscribe registers a synchronous subscription and waits for the server to process it.
func (c *Channel) Subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	sub, err := c.nc.SubscribeSync(topic)
	if err != nil {
		return nil, mapError("nats subscribe", err)
	}
	if err := c.flush(ctx); err != nil {
		if unsubErr := sub.Unsubscribe(); unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
			err = errors.Join(err, fmt.Errorf("unsubscribe: %w", unsubErr))
		}
		return nil, mapError("nats subscribe flush", err)
	}
	return &subscription{topic: topic, sub: sub}, nil
}

func (c *Channel) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.flushTimeout)
		defer cancel()
	}
	return c.nc.FlushWithContext(ctx)
}

// Ping checks the server round trip for readiness probes.
func (c *Channel) Ping(ctx context.Context) error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats ping: %w: status %s", apperrors.ErrUnavailable, c.nc.Status())
	}
	return mapError("nats ping", c.flush(ctx))
}

// Close drains pending messages and closes the connection.
func (c *Channel) Close() error {
	if c.nc.IsClosed() {
		return nil
	}
	if err := c.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		c.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrTimeout):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrTimeout, err)
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining),
		errors.Is(err, nats.ErrNoServers), errors.Is(err, nats.ErrDisconnected):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrUnavailable, err)
	default:
		return apperrors.MapTransportError(op, err)
	}
}

type subscription struct {
	topic string
	sub   *nats.Subscription
	once  sync.Once
	err   error
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Next(ctx context.Context, wait time.Duration) (model.Message, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	msg, err := s.sub.NextMsgWithContext(waitCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return model.Message{}, false, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
			return model.Message{}, false, nil
		case errors.Is(err, nats.ErrBadSubscription), errors.Is(err, nats.ErrConnectionClosed):
			return model.Message{}, false, apperrors.ErrClosed
		default:
			return model.Message{}, false, mapError("nats receive", err)
		}
	}
	return model.Message{
		Topic:      msg.Subject,
		Payload:    msg.Data,
		ReceivedAt: time.Now(),
	}, true, nil
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		err := s.sub.Unsubscribe()
		if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			s.err = fmt.Errorf("unsubscribe %s: %w", s.topic, err)
		}
	})
	return s.err
}

var (
	_ core.EventChannel = (*Channel)(nil)
	_ core.Pinger       = (*Channel)(nil)
)
