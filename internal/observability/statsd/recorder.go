package statsd

import (
	"sync"
	"time"
)

// Point is one metric observation captured by Recorder.
type Point struct {
	Kind  string // "count", "gauge" or "timing"
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink used in tests and for debugging.
type Recorder struct {
	mu     sync.Mutex
	points []Point
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) add(p Point) {
	r.mu.Lock()
	r.points = append(r.points, p)
	r.mu.Unlock()
}

// Count records a counter increment.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Point{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

// Gauge records a gauge value.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Point{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

// Timing records a duration in milliseconds.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Point{Kind: "timing", Name: name, Value: float64(value) / float64(time.Millisecond), Tags: tags})
}

// Points returns a copy of everything recorded so far.
func (r *Recorder) Points() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Point(nil), r.points...)
}

// Find returns the points named name whose tags contain every pair in match.
func (r *Recorder) Find(name string, match map[string]string) []Point {
	var out []Point
	for _, p := range r.Points() {
		if p.Name != name {
			continue
		}
		ok := true
		for k, v := range match {
			if p.Tags[k] != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}
