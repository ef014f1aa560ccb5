// Package redis implements the event channel on Redis pub/sub.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// ChannelOptions configure the Redis event channel.
type ChannelOptions struct {
	Client redis.UniversalClient
	Logger *slog.Logger
	// SubscribeTimeout bounds the wait for the broker's subscription confirmation.
	SubscribeTimeout time.Duration
}

// Channel publishes and subscribes through a shared Redis client.
type Channel struct {
	client           redis.UniversalClient
	logger           *slog.Logger
	subscribeTimeout time.Duration
	closeOnce        sync.Once
	closeErr         error
}

// NewChannel wraps an already connected client. Close releases it.
func NewChannel(opts ChannelOptions) (*Channel, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.SubscribeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Channel{
		client:           opts.Client,
		logger:           logger.With("component", "redis_channel"),
		subscribeTimeout: timeout,
	}, nil
}

// Publish sends payload on the Redis channel named topic.
func (c *Channel) Publish(ctx context.Context, topic string, payload []byte) error {
	receivers, err := c.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return apperrors.MapTransportError("redis publish", err)
	}
	c.logger.DebugContext(ctx, "published", "topic", topic, "receivers", receivers)
	return nil
}

// Subscribe opens a dedicated pub/sub connection and waits for the SUBSCRIBE reply.
func (c *Channel) Subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	ps := c.client.Subscribe(ctx, topic)

	confirmCtx, cancel := context.WithTimeout(ctx, c.subscribeTimeout)
	defer cancel()

	reply, err := ps.Receive(confirmCtx)
	if err != nil {
		if closeErr := ps.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close pubsub: %w", closeErr))
		}
		return nil, apperrors.MapTransportError("redis subscribe", err)
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w: unexpected reply %T", apperrors.ErrUnavailable, reply)
	}

	return &subscription{topic: topic, ps: ps}, nil
}

// SubscriberCount reports PUBSUB NUMSUB for topic.
func (c *Channel) SubscriberCount(ctx context.Context, topic string) (int64, error) {
	counts, err := c.client.PubSubNumSub(ctx, topic).Result()
	if err != nil {
		return 0, apperrors.MapTransportError("redis numsub", err)
	}
	return counts[topic], nil
}

// Ping checks the connection for readiness probes.
func (c *Channel) Ping(ctx context.Context) error {
	return apperrors.MapTransportError("redis ping", c.client.Ping(ctx).Err())
}

// Close releases the shared client.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		if err := c.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			c.closeErr = fmt.Errorf("close redis client: %w", err)
		}
	})
	return c.closeErr
}

type subscription struct {
	topic string
	ps    *redis.PubSub

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Next(ctx context.Context, wait time.Duration) (model.Message, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		if err := ctx.Err(); err != nil {
			return model.Message{}, false, err
		}
		if s.isClosed() {
			return model.Message{}, false, apperrors.ErrClosed
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return model.Message{}, false, nil
		}

		reply, err := s.ps.ReceiveTimeout(ctx, remaining)
		if err != nil {
			switch {
			case apperrors.IsNetTimeout(err):
				return model.Message{}, false, nil
			case ctx.Err() != nil:
				return model.Message{}, false, ctx.Err()
			case errors.Is(err, redis.ErrClosed) || s.isClosed():
				return model.Message{}, false, apperrors.ErrClosed
			default:
				return model.Message{}, false, apperrors.MapTransportError("redis receive", err)
			}
		}

		switch m := reply.(type) {
		case *redis.Message:
			return model.Message{
				Topic:      m.Channel,
				Payload:    []byte(m.Payload),
				ReceivedAt: time.Now(),
			}, true, nil
		default:
			// subscription confirmations and pongs
			continue
		}
	}
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Closing the PubSub connection drops the server-side subscription.
	if err := s.ps.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("close redis subscription: %w", err)
	}
	return nil
}

var (
	_ core.EventChannel      = (*Channel)(nil)
	_ core.SubscriberCounter = (*Channel)(nil)
	_ core.Pinger            = (*Channel)(nil)
)
