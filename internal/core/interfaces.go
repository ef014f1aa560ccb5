// Package core declares the ports the job pipeline and the relays depend on.
// Adapters under internal/adapters implement them; services only see these interfaces.
package core

import (
	"context"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// EventChannel is a publish/subscribe transport addressed by topic name.
// Implementations are safe for concurrent use by many publishers and subscribers.
type EventChannel interface {
	// Publish sends payload to every current subscriber of topic. Delivery is best-effort:
	// a publish with no subscribers succeeds and the payload is dropped.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns once the broker has confirmed the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	// Close releases the underlying client. Subscriptions opened from it stop receiving.
	Close() error
}

// Subscription is an ordered stream of messages for one topic, owned by a single reader.
type Subscription interface {
	Topic() string
	// Next waits up to wait for the next message. It returns ok=false with a nil error
	// when nothing arrived in time so callers can re-check their own liveness.
	Next(ctx context.Context, wait time.Duration) (msg model.Message, ok bool, err error)
	// Close is idempotent.
	Close() error
}

// SubscriberCounter is implemented by channels that can report how many live
// subscribers a topic has.
type SubscriberCounter interface {
	SubscriberCount(ctx context.Context, topic string) (int64, error)
}

// Pinger is implemented by channels whose broker connection can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TopicValidator is implemented by channels whose brokers restrict topic names.
// Callers check derived topics before accepting work that would publish to them.
type TopicValidator interface {
	ValidateTopic(topic string) error
}
