package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/gittidev/vibe-socket-test/config"
	"github.com/gittidev/vibe-socket-test/internal/adapters/kafka"
	"github.com/gittidev/vibe-socket-test/internal/adapters/memory"
	natschannel "github.com/gittidev/vibe-socket-test/internal/adapters/nats"
	redischannel "github.com/gittidev/vibe-socket-test/internal/adapters/redis"
	"github.com/gittidev/vibe-socket-test/internal/core"
)

// NewEventChannel connects the configured broker and wraps it in an event channel.
// The returned channel owns the broker client; closing it releases the connection.
//
//nolint:ireturn // the backend is chosen at runtime.
func NewEventChannel(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (core.EventChannel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Broker.Backend {
	case config.BrokerMemory:
		logger.WarnContext(ctx, "using in-memory event channel; results are not shared across processes")
		return memory.New(memory.Options{}), nil

	case config.BrokerNATS:
		nc, err := ConnectNATS(ctx, cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		ch, err := natschannel.NewChannel(natschannel.ChannelOptions{
			Conn:         nc,
			Logger:       logger,
			FlushTimeout: cfg.NATS.FlushTimeout,
		})
		if err != nil {
			nc.Close()
			return nil, err
		}
		return ch, nil

	case config.BrokerKafka:
		ch, err := kafka.NewChannel(kafka.ChannelOptions{
			Brokers:           cfg.Kafka.Brokers,
			Logger:            logger,
			DialTimeout:       cfg.Kafka.DialTimeout,
			ReaderMaxWait:     cfg.Kafka.ReaderMaxWait,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		})
		if err != nil {
			return nil, fmt.Errorf("create kafka channel: %w", err)
		}
		logger.InfoContext(ctx, "kafka channel configured", "brokers", cfg.Kafka.Brokers)
		return ch, nil

	case config.BrokerRedis, "":
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		ch, err := redischannel.NewChannel(redischannel.ChannelOptions{
			Client:           client,
			Logger:           logger,
			SubscribeTimeout: cfg.Broker.SubscribeTimeout,
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return ch, nil

	default:
		return nil, fmt.Errorf("unsupported broker backend %q", cfg.Broker.Backend)
	}
}

// ConnectNATS dials the NATS server with reconnects enabled.
func ConnectNATS(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	natsLogger := logger.With("component", "nats")
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				natsLogger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			natsLogger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	natsLogger.InfoContext(ctx, "nats connected", "url", nc.ConnectedUrlRedacted())
	return nc, nil
}
