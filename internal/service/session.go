// Package service holds the orchestration between the job runner, the event channel
// and connected streaming clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// DefaultPollInterval bounds each wait on the subscription so the receive loop can
// notice cancellation without busy-spinning.
const DefaultPollInterval = time.Second

// SessionOptions configure a subscription session.
type SessionOptions struct {
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Session owns exactly one subscription and turns it into a lazy message sequence.
type Session struct {
	sub    core.Subscription
	poll   time.Duration
	logger *slog.Logger

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenSession subscribes to topic before returning, so broker failures surface here.
func OpenSession(ctx context.Context, channel core.EventChannel, topic string, opts SessionOptions) (*Session, error) {
	if channel == nil {
		return nil, errors.New("event channel is required")
	}
	sub, err := channel.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("open session on %s: %w", topic, err)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		sub:    sub,
		poll:   poll,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Topic returns the subscribed topic.
func (s *Session) Topic() string { return s.sub.Topic() }

// Receive yields messages in arrival order until ctx is cancelled or the session is
// closed, in which case the sequence simply ends. A channel error is yielded once and
// ends the sequence. The sequence can be ranged over only once; later attempts yield
// ErrSessionConsumed.
func (s *Session) Receive(ctx context.Context) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		if !s.started.CompareAndSwap(false, true) {
			yield(model.Message{}, apperrors.ErrSessionConsumed)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}

			msg, ok, err := s.sub.Next(ctx, s.poll)
			if err != nil {
				if ctx.Err() != nil || s.closed() {
					return
				}
				yield(model.Message{}, fmt.Errorf("receive on %s: %w", s.sub.Topic(), err))
				return
			}
			if !ok {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close stops the receive loop and releases the subscription. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.sub.Close(); err != nil {
			s.closeErr = fmt.Errorf("close session on %s: %w", s.sub.Topic(), err)
			s.logger.Warn("unsubscribe failed", "topic", s.sub.Topic(), "error", err)
		}
	})
	return s.closeErr
}
