package config

import (
	"strings"
	"time"
)

// AlertsConfig drives the vital-sign alert monitor.
type AlertsConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// Throttle is the minimum gap between two alerts for the same patient condition.
	Throttle         time.Duration `env:"THROTTLE"          envDefault:"60s"`
	ResubscribeDelay time.Duration `env:"RESUBSCRIBE_DELAY" envDefault:"1s"`

	// JMESPath expressions locating each vital inside a result's data document.
	PathHR        string `env:"PATH_HR"        envDefault:"hr"`
	PathSBP       string `env:"PATH_SBP"       envDefault:"sbp"`
	PathSpO2      string `env:"PATH_SPO2"      envDefault:"spo2"`
	PathTemp      string `env:"PATH_TEMP"      envDefault:"temp"`
	PathRR        string `env:"PATH_RR"        envDefault:"rr"`
	PathTimestamp string `env:"PATH_TIMESTAMP" envDefault:"timestamp"`
}

// Sanitize applies guardrails to alert configuration values.
func (c *AlertsConfig) Sanitize() {
	if c.Throttle <= 0 {
		c.Throttle = 60 * time.Second
	}
	if c.ResubscribeDelay <= 0 {
		c.ResubscribeDelay = time.Second
	}
	for _, p := range []*string{&c.PathHR, &c.PathSBP, &c.PathSpO2, &c.PathTemp, &c.PathRR, &c.PathTimestamp} {
		*p = strings.TrimSpace(*p)
	}
}

// RosterConfig locates the patient roster.
type RosterConfig struct {
	// File is a JSON array of {"id","name","ward","bed"}. Empty uses the built-in demo roster.
	File string `env:"FILE"`
}

// Sanitize applies guardrails to roster configuration values.
func (c *RosterConfig) Sanitize() {
	c.File = strings.TrimSpace(c.File)
}
