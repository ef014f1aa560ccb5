// Package prom exposes the statsd.Sink metrics through a Prometheus registry.
package prom

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "vibe_socket"

// DefaultLabels fixes the label set of each metric the service emits. Prometheus
// requires a stable label set per metric, so tags outside the schema are dropped and
// missing ones are exported as empty strings.
var DefaultLabels = map[string][]string{
	"job.transition":          {"job_type", "transition", "result", "error_class"},
	"job.duration":            {"job_type", "transition", "result", "error_class"},
	"job.queue_wait":          {"job_type"},
	"job.publish":             {"job_type", "result", "error_class"},
	"job.publish_retries":     {"job_type"},
	"job.publish_duration":    {"job_type", "result", "error_class"},
	"relay.transition":        {"state", "reason", "error_class"},
	"relay.active":            {},
	"relay.message":           {"result"},
	"simulator.tick":          {"result", "error_class"},
	"simulator.submitted":     {"result", "error_class"},
	"simulator.tick_duration": {"result", "error_class"},
	"alert.evaluation":        {"result", "error_class"},
	"alert.raised":            {"severity"},
	"alert.resolved":          {},
}

// Options configure the sink.
type Options struct {
	Namespace string
	// Labels overrides DefaultLabels. Metrics not listed take their label set from the first observation.
	Labels map[string][]string
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Sink implements statsd.Sink by lazily creating counter, gauge and histogram vectors.
type Sink struct {
	namespace string
	registry  *prometheus.Registry
	factory   promauto.Factory

	mu         sync.Mutex
	labels     map[string][]string
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

var _ statsd.Sink = (*Sink)(nil)

// NewSink builds a sink around opts.Registry or a new registry.
func NewSink(opts Options) *Sink {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	labels := make(map[string][]string, len(DefaultLabels))
	for k, v := range DefaultLabels {
		labels[k] = v
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	return &Sink{
		namespace:  ns,
		registry:   reg,
		factory:    promauto.With(reg),
		labels:     labels,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry returns the registry metrics are registered in.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// Handler serves the registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Count adds value to the counter name.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.labelKeys(name, tags)
	vec, ok := s.counters[name]
	if !ok {
		vec = s.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Count of " + name + " events.",
		}, keys)
		s.counters[name] = vec
	}
	vec.WithLabelValues(values(keys, tags)...).Add(float64(value))
}

// Gauge sets the gauge name.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.labelKeys(name, tags)
	vec, ok := s.gauges[name]
	if !ok {
		vec = s.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      metricName(name),
			Help:      "Current value of " + name + ".",
		}, keys)
		s.gauges[name] = vec
	}
	vec.WithLabelValues(values(keys, tags)...).Set(value)
}

// Timing observes value, in seconds, on the histogram name.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.labelKeys(name, tags)
	vec, ok := s.histograms[name]
	if !ok {
		vec = s.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Duration of " + name + ".",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms .. ~33s
		}, keys)
		s.histograms[name] = vec
	}
	vec.WithLabelValues(values(keys, tags)...).Observe(value.Seconds())
}

// labelKeys returns the fixed label set for name, recording one from tags on first use.
// Callers hold s.mu.
func (s *Sink) labelKeys(name string, tags map[string]string) []string {
	if keys, ok := s.labels[name]; ok {
		return keys
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	s.labels[name] = keys
	return keys
}

func values(keys []string, tags map[string]string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = tags[k]
	}
	return out
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(name))
}
