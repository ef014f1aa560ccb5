// Package kafka implements the event channel on Kafka topics.
//
// Every subscriber reads partition 0 of its topic from the current end without a
// consumer group, so each one sees every message published after it subscribed,
// matching pub/sub fan-out. Publishes are pinned to partition 0 to keep ordering.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

const (
	partition = 0
	// maxTopicLength is the broker's limit on topic names.
	maxTopicLength = 249
)

var legalTopic = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateTopic checks topic against Kafka's naming rules: ASCII letters, digits,
// '.', '_' and '-', at most 249 characters, and not "." or "..".
func ValidateTopic(topic string) error {
	switch {
	case topic == "" || topic == "." || topic == "..":
		return fmt.Errorf("%w: kafka topic %q is reserved or empty", apperrors.ErrInvalidSubjectKey, topic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: kafka topic exceeds %d characters", apperrors.ErrInvalidSubjectKey, maxTopicLength)
	case !legalTopic.MatchString(topic):
		return fmt.Errorf("%w: kafka topic %q may only contain letters, digits, '.', '_' and '-'",
			apperrors.ErrInvalidSubjectKey, topic)
	}
	return nil
}

// ChannelOptions configure the Kafka event channel.
type ChannelOptions struct {
	Brokers           []string
	Logger            *slog.Logger
	DialTimeout       time.Duration
	ReaderMaxWait     time.Duration
	ReplicationFactor int
}

// Channel publishes through one shared writer and opens a reader per subscription.
type Channel struct {
	brokers     []string
	logger      *slog.Logger
	dialer      *kafka.Dialer
	writer      *kafka.Writer
	maxWait     time.Duration
	replication int

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

// NewChannel builds the shared writer. No connection is made until first use.
func NewChannel(opts ChannelOptions) (*Channel, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker address is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	maxWait := opts.ReaderMaxWait
	if maxWait <= 0 {
		maxWait = 250 * time.Millisecond
	}
	replication := opts.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	dialer := &kafka.Dialer{Timeout: dialTimeout, DualStack: true}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(opts.Brokers...),
		Balancer:               kafka.BalancerFunc(func(kafka.Message, ...int) int { return partition }),
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{DialTimeout: dialTimeout},
	}

	return &Channel{
		brokers:     append([]string(nil), opts.Brokers...),
		logger:      logger.With("component", "kafka_channel"),
		dialer:      dialer,
		writer:      writer,
		maxWait:     maxWait,
		replication: replication,
		topics:      make(map[string]struct{}),
	}, nil
}

// ValidateTopic implements core.TopicValidator.
func (c *Channel) ValidateTopic(topic string) error {
	return ValidateTopic(topic)
}

// Publish writes payload to topic and waits for the leader's acknowledgement.
func (c *Channel) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.isClosed() {
		return apperrors.ErrUnavailable
	}
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if err := c.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: payload}); err != nil {
		return apperrors.MapTransportError("kafka publish", err)
	}
	return nil
}

// Subscribe ensures the topic exists, resolves the current end offset and opens a reader there.
func (c *Channel) Subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	if c.isClosed() {
		return nil, apperrors.ErrUnavailable
	}
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if err := c.ensureTopic(ctx, topic); err != nil {
		return nil, apperrors.MapTransportError("kafka subscribe", err)
	}

	offset, err := c.lastOffset(ctx, topic)
	if err != nil {
		return nil, apperrors.MapTransportError("kafka subscribe", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   c.brokers,
		Topic:     topic,
		Partition: partition,
		Dialer:    c.dialer,
		MinBytes:  1,
		MaxBytes:  1 << 20,
		MaxWait:   c.maxWait,
	})
	if err := reader.SetOffset(offset); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("kafka subscribe: set offset: %w", err)
	}

	c.logger.DebugContext(ctx, "subscribed", "topic", topic, "offset", offset)
	return &subscription{topic: topic, reader: reader}, nil
}

func (c *Channel) lastOffset(ctx context.Context, topic string) (int64, error) {
	conn, err := c.dialer.DialLeader(ctx, "tcp", c.brokers[0], topic, partition)
	if err != nil {
		return 0, fmt.Errorf("dial leader: %w", err)
	}
	defer conn.Close()

	offset, err := conn.ReadLastOffset()
	if err != nil {
		return 0, fmt.Errorf("read last offset: %w", err)
	}
	return offset, nil
}

func (c *Channel) ensureTopic(ctx context.Context, topic string) error {
	c.mu.Lock()
	_, known := c.topics[topic]
	c.mu.Unlock()
	if known {
		return nil
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("lookup controller: %w", err)
	}
	ctrlConn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: c.replication,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}

	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Ping dials the first broker for readiness probes.
func (c *Channel) Ping(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return apperrors.MapTransportError("kafka ping", err)
	}
	return conn.Close()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close flushes and closes the shared writer.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

type subscription struct {
	topic  string
	reader *kafka.Reader
	once   sync.Once
	closed atomic.Bool
	err    error
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Next(ctx context.Context, wait time.Duration) (model.Message, bool, error) {
	if s.closed.Load() {
		return model.Message{}, false, apperrors.ErrClosed
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	m, err := s.reader.ReadMessage(waitCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return model.Message{}, false, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return model.Message{}, false, nil
		case errors.Is(err, io.EOF) || s.closed.Load():
			return model.Message{}, false, apperrors.ErrClosed
		default:
			return model.Message{}, false, apperrors.MapTransportError("kafka receive", err)
		}
	}
	return model.Message{Topic: m.Topic, Payload: m.Value, ReceivedAt: time.Now()}, true, nil
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		if err := s.reader.Close(); err != nil {
			s.err = fmt.Errorf("close kafka reader: %w", err)
		}
	})
	return s.err
}

var (
	_ core.EventChannel   = (*Channel)(nil)
	_ core.Pinger         = (*Channel)(nil)
	_ core.TopicValidator = (*Channel)(nil)
)
