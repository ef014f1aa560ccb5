package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - broker.go: event channel backend and broker connections
//   - http.go: HTTP server configuration
//   - jobs.go: job runner, relay, processing and simulator configuration
//   - alerts.go: alert monitor and patient roster configuration
//   - observability.go: logging and metrics configuration
type AppConfig struct {
	// Event channel configuration
	Broker BrokerConfig `envPrefix:"BROKER_"`
	Redis  RedisConfig  `envPrefix:"REDIS_"`
	NATS   NATSConfig   `envPrefix:"NATS_"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_"`

	// HTTP server configuration
	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// Job pipeline configuration
	Jobs       JobsConfig       `envPrefix:"JOBS_"`
	Relay      RelayConfig      `envPrefix:"RELAY_"`
	Processing ProcessingConfig `envPrefix:"PROCESSING_"`
	Simulator  SimulatorConfig  `envPrefix:"SIMULATOR_"`

	// Alerting configuration
	Alerts AlertsConfig `envPrefix:"ALERTS_"`
	Roster RosterConfig `envPrefix:"ROSTER_"`

	// Observability configuration
	Log           LogConfig `envPrefix:"LOG_"`
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Broker.Sanitize()
	c.NATS.Sanitize()
	c.Kafka.Sanitize()
	c.HTTP.Sanitize()
	c.Jobs.Sanitize()
	c.Relay.Sanitize()
	c.Processing.Sanitize()
	c.Simulator.Sanitize()
	c.Alerts.Sanitize()
	c.Roster.Sanitize()
	c.Log.Sanitize()
	c.Observability.Sanitize()
}
