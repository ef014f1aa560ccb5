package config

import (
	"strings"
	"time"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 1024
	maxWorkers       = 1024
)

// JobsConfig tunes the background job runner.
type JobsConfig struct {
	Workers   int `env:"WORKERS"    envDefault:"8"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"1024"`

	// Deduplicate rejects a submission while a job for the same patient is in flight.
	Deduplicate bool `env:"DEDUPLICATE" envDefault:"true"`

	// ExecTimeout bounds a single execution. Zero means no bound.
	ExecTimeout time.Duration `env:"EXEC_TIMEOUT" envDefault:"0s"`

	// PublishRetries is the number of extra publish attempts after the first failure.
	PublishRetries    int           `env:"PUBLISH_RETRIES"     envDefault:"0"`
	PublishBackoff    time.Duration `env:"PUBLISH_BACKOFF"     envDefault:"200ms"`
	PublishMaxBackoff time.Duration `env:"PUBLISH_MAX_BACKOFF" envDefault:"5s"`

	// DrainTimeout bounds how long shutdown waits for queued and in-flight jobs.
	DrainTimeout time.Duration `env:"DRAIN_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to job runner configuration values.
func (c *JobsConfig) Sanitize() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.ExecTimeout < 0 {
		c.ExecTimeout = 0
	}
	if c.PublishRetries < 0 {
		c.PublishRetries = 0
	}
	if c.PublishBackoff <= 0 {
		c.PublishBackoff = 200 * time.Millisecond
	}
	if c.PublishMaxBackoff < c.PublishBackoff {
		c.PublishMaxBackoff = c.PublishBackoff
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 15 * time.Second
	}
}

// RelayConfig tunes websocket relays.
type RelayConfig struct {
	// PollInterval is the longest a relay waits on the broker before re-checking for shutdown.
	PollInterval   time.Duration `env:"POLL_INTERVAL"    envDefault:"1s"`
	WriteWait      time.Duration `env:"WRITE_WAIT"       envDefault:"10s"`
	PongWait       time.Duration `env:"PONG_WAIT"        envDefault:"60s"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
}

// Sanitize applies guardrails to relay configuration values.
func (c *RelayConfig) Sanitize() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
}

// Processing modes.
const (
	// ProcessingStatic returns Payload for every job.
	ProcessingStatic = "static"
	// ProcessingVitals returns a random JSON vital-signs document for every job.
	ProcessingVitals = "vitals"
)

// ProcessingConfig configures the simulated patient data processing.
type ProcessingConfig struct {
	Delay   time.Duration `env:"DELAY"   envDefault:"5s"`
	Payload string        `env:"PAYLOAD" envDefault:"Blood Pressure: 120/80"`
	Mode    string        `env:"MODE"    envDefault:"static"`
}

// Sanitize applies guardrails to processing configuration values.
func (c *ProcessingConfig) Sanitize() {
	if c.Delay < 0 {
		c.Delay = 0
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode != ProcessingVitals {
		c.Mode = ProcessingStatic
	}
	if strings.TrimSpace(c.Payload) == "" {
		c.Payload = "Blood Pressure: 120/80"
	}
}

// SimulatorConfig drives periodic submissions for demos and soak tests.
type SimulatorConfig struct {
	Enabled  bool     `env:"ENABLED"  envDefault:"false"`
	Schedule string   `env:"SCHEDULE" envDefault:"@every 3s"`
	Patients []string `env:"PATIENTS" envDefault:"p001,p002,p003"`
}

// Sanitize applies guardrails to simulator configuration values.
func (c *SimulatorConfig) Sanitize() {
	c.Schedule = strings.TrimSpace(c.Schedule)
	if c.Schedule == "" {
		c.Schedule = "@every 3s"
	}
	patients := c.Patients[:0]
	for _, p := range c.Patients {
		if p = strings.TrimSpace(p); p != "" {
			patients = append(patients, p)
		}
	}
	c.Patients = patients
	if len(c.Patients) == 0 {
		c.Enabled = false
	}
}
