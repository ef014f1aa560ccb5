package alert

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// PathEvaluator abstracts JMESPath operations for testability.
type PathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements PathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Paths are JMESPath expressions locating each metric inside a result's data document.
// An empty path disables that metric.
type Paths struct {
	HR        string
	SBP       string
	SpO2      string
	Temp      string
	RR        string
	Timestamp string
}

// DefaultPaths reads top-level fields named after each metric.
func DefaultPaths() Paths {
	return Paths{HR: "hr", SBP: "sbp", SpO2: "spo2", Temp: "temp", RR: "rr", Timestamp: "timestamp"}
}

// Extractor pulls a Reading out of a decoded data document.
type Extractor struct {
	eval      PathEvaluator
	metrics   map[Metric]string
	timestamp string
}

// NewExtractor validates every path. A nil evaluator uses go-jmespath.
func NewExtractor(paths Paths, eval PathEvaluator) (*Extractor, error) {
	if eval == nil {
		eval = jmespathLibEvaluator{}
	}
	metrics := map[Metric]string{
		MetricHR:   strings.TrimSpace(paths.HR),
		MetricSBP:  strings.TrimSpace(paths.SBP),
		MetricSpO2: strings.TrimSpace(paths.SpO2),
		MetricTemp: strings.TrimSpace(paths.Temp),
		MetricRR:   strings.TrimSpace(paths.RR),
	}
	for m, expr := range metrics {
		if expr == "" {
			delete(metrics, m)
			continue
		}
		if err := eval.Validate(expr); err != nil {
			return nil, fmt.Errorf("invalid %s path %q: %w", m, expr, err)
		}
	}
	ts := strings.TrimSpace(paths.Timestamp)
	if err := eval.Validate(ts); err != nil {
		return nil, fmt.Errorf("invalid timestamp path %q: %w", ts, err)
	}
	return &Extractor{eval: eval, metrics: metrics, timestamp: ts}, nil
}

// ParseData decodes a result's data string into a document. ok is false for
// anything that is not a JSON object.
func ParseData(data string) (doc map[string]any, ok bool) {
	if err := json.Unmarshal([]byte(data), &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

// Extract returns the numeric metrics found in doc. Missing or non-numeric values are left out.
func (x *Extractor) Extract(doc any) Reading {
	reading := make(Reading, len(x.metrics))
	for _, m := range Metrics() {
		expr, ok := x.metrics[m]
		if !ok {
			continue
		}
		v, err := x.eval.Evaluate(expr, doc)
		if err != nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			reading[m] = f
		}
	}
	return reading
}

// Timestamp returns the sample time from doc: epoch milliseconds or an RFC 3339 string.
func (x *Extractor) Timestamp(doc any) (time.Time, bool) {
	if x.timestamp == "" {
		return time.Time{}, false
	}
	v, err := x.eval.Evaluate(x.timestamp, doc)
	if err != nil {
		return time.Time{}, false
	}
	if s, ok := v.(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	ms, ok := toFloat(v)
	if !ok || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
