package bootstrap

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/config"
	"github.com/gittidev/vibe-socket-test/internal/adapters/kafka"
	"github.com/gittidev/vibe-socket-test/internal/adapters/memory"
	natschannel "github.com/gittidev/vibe-socket-test/internal/adapters/nats"
	redischannel "github.com/gittidev/vibe-socket-test/internal/adapters/redis"
	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

func roundTrip(t *testing.T, ch core.EventChannel) {
	t.Helper()
	sub, err := ch.Subscribe(t.Context(), "patient_data_channel")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, ch.Publish(t.Context(), "patient_data_channel", []byte(`{"patientId":"p1"}`)))

	msg, ok, err := sub.Next(t.Context(), 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"patientId":"p1"}`, string(msg.Payload))
}

func TestNewEventChannel_Memory(t *testing.T) {
	cfg := &config.AppConfig{Broker: config.BrokerConfig{Backend: config.BrokerMemory}}

	ch, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	assert.IsType(t, &memory.Channel{}, ch)
	roundTrip(t, ch)
}

func TestNewEventChannel_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.AppConfig{
		Broker: config.BrokerConfig{Backend: config.BrokerRedis, SubscribeTimeout: time.Second},
		Redis:  config.RedisConfig{URI: mr.Addr()},
	}

	ch, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	assert.IsType(t, &redischannel.Channel{}, ch)
	roundTrip(t, ch)
}

func TestNewEventChannel_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.AppConfig{
		Broker: config.BrokerConfig{Backend: config.BrokerRedis},
		Redis:  config.RedisConfig{URI: addr},
	}
	_, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestNewEventChannel_NATS(t *testing.T) {
	ns, _ := testutil.StartEmbeddedNATS(t)
	cfg := &config.AppConfig{
		Broker: config.BrokerConfig{Backend: config.BrokerNATS},
		NATS: config.NATSConfig{
			URL:            ns.ClientURL(),
			Name:           "bootstrap-test",
			ConnectTimeout: time.Second,
			FlushTimeout:   time.Second,
		},
	}

	ch, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	assert.IsType(t, &natschannel.Channel{}, ch)
	roundTrip(t, ch)
}

func TestConnectNATS_Errors(t *testing.T) {
	_, err := ConnectNATS(t.Context(), config.NATSConfig{}, nil)
	require.Error(t, err)

	_, err = ConnectNATS(t.Context(), config.NATSConfig{
		URL:            "nats://127.0.0.1:1",
		ConnectTimeout: 100 * time.Millisecond,
	}, nil)
	require.Error(t, err)
}

func TestNewEventChannel_KafkaIsLazy(t *testing.T) {
	cfg := &config.AppConfig{
		Broker: config.BrokerConfig{Backend: config.BrokerKafka},
		Kafka:  config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}},
	}

	ch, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.NoError(t, err, "the kafka writer dials on first use")
	assert.IsType(t, &kafka.Channel{}, ch)
	require.NoError(t, ch.Close())
}

func TestNewEventChannel_KafkaRequiresBrokers(t *testing.T) {
	cfg := &config.AppConfig{Broker: config.BrokerConfig{Backend: config.BrokerKafka}}

	_, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.Error(t, err)
}

func TestNewEventChannel_Unsupported(t *testing.T) {
	cfg := &config.AppConfig{Broker: config.BrokerConfig{Backend: "pigeon"}}

	_, err := NewEventChannel(t.Context(), cfg, discardLogger())
	require.Error(t, err)
}
