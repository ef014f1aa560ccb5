package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// BrokerBackend selects the event channel implementation.
type BrokerBackend string

const (
	// BrokerRedis uses Redis pub/sub.
	BrokerRedis BrokerBackend = "redis"
	// BrokerNATS uses NATS core subjects.
	BrokerNATS BrokerBackend = "nats"
	// BrokerKafka uses a Kafka topic per channel.
	BrokerKafka BrokerBackend = "kafka"
	// BrokerMemory keeps everything in process (single node, tests, demos).
	BrokerMemory BrokerBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for BrokerBackend.
func (b *BrokerBackend) UnmarshalText(text []byte) error {
	v := BrokerBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case BrokerRedis, BrokerNATS, BrokerKafka, BrokerMemory:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid broker backend: %q (valid options: redis, nats, kafka, memory)", v)
	}
}

// BrokerConfig selects and tunes the event channel.
type BrokerConfig struct {
	Backend BrokerBackend `env:"BACKEND" envDefault:"redis"`

	// Channel is the topic results are published under (or the prefix in per-subject mode).
	Channel   string          `env:"CHANNEL"    envDefault:"patient_data_channel"`
	TopicMode model.TopicMode `env:"TOPIC_MODE" envDefault:"shared"`

	PublishTimeout   time.Duration `env:"PUBLISH_TIMEOUT"   envDefault:"5s"`
	SubscribeTimeout time.Duration `env:"SUBSCRIBE_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to broker configuration values.
func (b *BrokerConfig) Sanitize() {
	if b.Backend == "" {
		b.Backend = BrokerRedis
	}
	b.Channel = strings.TrimSpace(b.Channel)
	if b.Channel == "" {
		b.Channel = model.DefaultChannel
	}
	if !b.TopicMode.Valid() {
		b.TopicMode = model.TopicModeShared
	}
	if b.PublishTimeout <= 0 {
		b.PublishTimeout = 5 * time.Second
	}
	if b.SubscribeTimeout <= 0 {
		b.SubscribeTimeout = 5 * time.Second
	}
}

// Topics returns the topic naming derived from this configuration.
func (b BrokerConfig) Topics() model.Topics {
	return model.NewTopics(b.Channel, b.TopicMode)
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL            string        `env:"URL"             envDefault:"nats://127.0.0.1:4222"`
	Name           string        `env:"CLIENT_NAME"     envDefault:"vibe-socket"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	FlushTimeout   time.Duration `env:"FLUSH_TIMEOUT"   envDefault:"2s"`
	MaxReconnects  int           `env:"MAX_RECONNECTS"  envDefault:"60"`
}

// Sanitize applies guardrails to NATS configuration values.
func (n *NATSConfig) Sanitize() {
	n.URL = strings.TrimSpace(n.URL)
	if n.ConnectTimeout <= 0 {
		n.ConnectTimeout = 5 * time.Second
	}
	if n.FlushTimeout <= 0 {
		n.FlushTimeout = 2 * time.Second
	}
}

// KafkaConfig contains Kafka connection configuration.
type KafkaConfig struct {
	Brokers           []string      `env:"BROKERS"            envDefault:"localhost:9092"`
	DialTimeout       time.Duration `env:"DIAL_TIMEOUT"       envDefault:"5s"`
	ReaderMaxWait     time.Duration `env:"READER_MAX_WAIT"    envDefault:"250ms"`
	ReplicationFactor int           `env:"REPLICATION_FACTOR" envDefault:"1"`
}

// Sanitize applies guardrails to Kafka configuration values.
func (k *KafkaConfig) Sanitize() {
	brokers := k.Brokers[:0]
	for _, b := range k.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	k.Brokers = brokers
	if k.DialTimeout <= 0 {
		k.DialTimeout = 5 * time.Second
	}
	if k.ReaderMaxWait <= 0 {
		k.ReaderMaxWait = 250 * time.Millisecond
	}
	if k.ReplicationFactor < 1 {
		k.ReplicationFactor = 1
	}
}
