package jobrunner

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
)

const (
	// DefaultVitalsPayload is the reading the simulated processor reports.
	DefaultVitalsPayload = "Blood Pressure: 120/80"
	// DefaultProcessingDelay is how long the simulated processor takes.
	DefaultProcessingDelay = 5 * time.Second
)

// VitalsExecutor simulates patient data processing: it waits Delay, then returns
// Generate's reading, or Payload when Generate is nil.
type VitalsExecutor struct {
	Delay    time.Duration
	Payload  string
	Generate func(subjectKey string) (string, error)
}

// NewVitalsExecutor applies defaults for zero values.
func NewVitalsExecutor(delay time.Duration, payload string) VitalsExecutor {
	if delay < 0 {
		delay = DefaultProcessingDelay
	}
	if payload == "" {
		payload = DefaultVitalsPayload
	}
	return VitalsExecutor{Delay: delay, Payload: payload}
}

// NewRandomVitalsExecutor returns an executor whose results are JSON VitalSigns documents.
func NewRandomVitalsExecutor(delay time.Duration) VitalsExecutor {
	exec := NewVitalsExecutor(delay, "")
	exec.Generate = func(string) (string, error) {
		b, err := json.Marshal(RandomVitals(time.Now()))
		return string(b), err
	}
	return exec
}

// Execute waits for the configured delay or until ctx is done.
func (e VitalsExecutor) Execute(ctx context.Context, subjectKey string) (string, error) {
	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if e.Generate != nil {
		return e.Generate(subjectKey)
	}
	return e.Payload, nil
}

// VitalSigns is one bedside reading. Timestamp is epoch milliseconds.
type VitalSigns struct {
	HR        int     `json:"hr"`
	SBP       int     `json:"sbp"`
	DBP       int     `json:"dbp"`
	SpO2      int     `json:"spo2"`
	Temp      float64 `json:"temp"`
	RR        int     `json:"rr"`
	Timestamp int64   `json:"timestamp"`
}

// RandomVitals draws a reading from ranges wide enough to cross the default alert limits now and then.
func RandomVitals(now time.Time) VitalSigns {
	return VitalSigns{
		HR:        between(55, 130),
		SBP:       between(90, 180),
		DBP:       between(50, 100),
		SpO2:      between(88, 99),
		Temp:      math.Round((36+rand.Float64()*3)*10) / 10, //nolint:gosec // simulated data
		RR:        between(10, 28),
		Timestamp: now.UnixMilli(),
	}
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1) //nolint:gosec // simulated data
}

var _ core.Executor = VitalsExecutor{}
