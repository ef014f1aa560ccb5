// Package memory provides an in-process EventChannel for tests, demos and single-node runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

const defaultBufferSize = 64

// Options configure the in-memory channel.
type Options struct {
	// BufferSize is the per-subscriber queue length. Messages published to a full
	// queue are dropped for that subscriber only.
	BufferSize int
}

// Channel fans each published payload out to every subscriber of the topic.
type Channel struct {
	bufSize int

	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

// New constructs an in-memory channel.
func New(opts Options) *Channel {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Channel{
		bufSize: size,
		subs:    make(map[string]map[*subscription]struct{}),
	}
}

// Publish delivers payload to the current subscribers of topic without blocking.
func (c *Channel) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.MapTransportError("memory publish", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrUnavailable
	}

	msg := model.Message{
		Topic:      topic,
		Payload:    append([]byte(nil), payload...),
		ReceivedAt: time.Now(),
	}
	for sub := range c.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for topic.
func (c *Channel) Subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.MapTransportError("memory subscribe", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apperrors.ErrUnavailable
	}

	sub := &subscription{
		parent: c,
		topic:  topic,
		ch:     make(chan model.Message, c.bufSize),
	}
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[*subscription]struct{})
	}
	c.subs[topic][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount returns the number of open subscriptions on topic.
func (c *Channel) SubscriberCount(_ context.Context, topic string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.subs[topic])), nil
}

// Ping reports whether the channel still accepts traffic.
func (c *Channel) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperrors.ErrUnavailable
	}
	return nil
}

// Close stops the channel and closes every subscription.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for topic, subscribers := range c.subs {
		for sub := range subscribers {
			drainAndClose(sub.ch)
		}
		delete(c.subs, topic)
	}
	return nil
}

func (c *Channel) remove(sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subscribers := c.subs[sub.topic]
	if _, ok := subscribers[sub]; !ok {
		return
	}
	delete(subscribers, sub)
	drainAndClose(sub.ch)
	if len(subscribers) == 0 {
		delete(c.subs, sub.topic)
	}
}

type subscription struct {
	parent *Channel
	topic  string
	ch     chan model.Message
	once   sync.Once
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Next(ctx context.Context, wait time.Duration) (model.Message, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case msg, ok := <-s.ch:
		if !ok {
			return model.Message{}, false, apperrors.ErrClosed
		}
		return msg, true, nil
	case <-timer.C:
		return model.Message{}, false, nil
	case <-ctx.Done():
		return model.Message{}, false, ctx.Err()
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.parent.remove(s) })
	return nil
}

// drainAndClose removes buffered messages before closing so a reader blocked in
// Next observes the close immediately.
func drainAndClose(ch chan model.Message) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var (
	_ core.EventChannel      = (*Channel)(nil)
	_ core.SubscriberCounter = (*Channel)(nil)
	_ core.Pinger            = (*Channel)(nil)
)
