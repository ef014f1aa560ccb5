package alert

import (
	"fmt"
	"strconv"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// Metric names one vital sign.
type Metric string

const (
	MetricHR   Metric = "hr"
	MetricSBP  Metric = "sbp"
	MetricSpO2 Metric = "spo2"
	MetricTemp Metric = "temp"
	MetricRR   Metric = "rr"
)

// Metrics lists every metric in evaluation order.
func Metrics() []Metric {
	return []Metric{MetricHR, MetricSBP, MetricSpO2, MetricTemp, MetricRR}
}

// Reading holds the metrics present in one sample. Absent metrics are not evaluated.
type Reading map[Metric]float64

// Condition is one breached limit.
type Condition struct {
	Message  string
	Severity model.Severity
}

// Rule checks one metric against one side of its limits.
type Rule interface {
	ID() string
	Metric() Metric
	Check(value float64, t Thresholds) (Condition, bool)
}

// MetricRule is a Rule built from a check function.
type MetricRule struct {
	Name   string
	On     Metric
	CheckF func(value float64, t Thresholds) (Condition, bool)
}

// ID identifies the rule, for example "hr:high".
func (f MetricRule) ID() string { return f.Name }

// Metric returns the metric the rule reads.
func (f MetricRule) Metric() Metric { return f.On }

// Check runs f.CheckF. A rule without one never fires.
func (f MetricRule) Check(value float64, t Thresholds) (Condition, bool) {
	if f.CheckF == nil {
		return Condition{}, false
	}
	return f.CheckF(value, t)
}

// BuiltinRules returns the bedside rules: high and low checks for HR, SBP and RR,
// a low check for SpO2 and a fever check for temperature.
func BuiltinRules() []Rule {
	return []Rule{
		above(MetricHR, "High HR %s (> %s)", func(t Thresholds) *float64 { return t.HRHigh }),
		below(MetricHR, "Low HR %s (< %s)", func(t Thresholds) *float64 { return t.HRLow }),
		above(MetricSBP, "High SBP %s (> %s)", func(t Thresholds) *float64 { return t.SBPHigh }),
		below(MetricSBP, "Low SBP %s (< %s)", func(t Thresholds) *float64 { return t.SBPLow }),
		below(MetricSpO2, "Low SpO2 %s%% (< %s%%)", func(t Thresholds) *float64 { return t.SpO2Low }),
		fever(),
		above(MetricRR, "High RR %s (> %s)", func(t Thresholds) *float64 { return t.RRHigh }),
		below(MetricRR, "Low RR %s (< %s)", func(t Thresholds) *float64 { return t.RRLow }),
	}
}

func above(m Metric, format string, limit func(Thresholds) *float64) Rule {
	return MetricRule{Name: string(m) + ":high", On: m, CheckF: func(v float64, t Thresholds) (Condition, bool) {
		high := limit(t)
		if high == nil || v <= *high {
			return Condition{}, false
		}
		sev := model.SeverityWarning
		if v > *high*1.15 {
			sev = model.SeverityCritical
		}
		return Condition{Message: fmt.Sprintf(format, num(v), num(*high)), Severity: sev}, true
	}}
}

func below(m Metric, format string, limit func(Thresholds) *float64) Rule {
	return MetricRule{Name: string(m) + ":low", On: m, CheckF: func(v float64, t Thresholds) (Condition, bool) {
		low := limit(t)
		if low == nil || v >= *low {
			return Condition{}, false
		}
		return Condition{Message: fmt.Sprintf(format, num(v), num(*low)), Severity: lowSeverity(m, v, *low)}, true
	}}
}

// SpO2 is graded in absolute points since its scale is a percentage.
func lowSeverity(m Metric, v, low float64) model.Severity {
	critical := v < low*0.85
	if m == MetricSpO2 {
		critical = low-v >= 2
	}
	if critical {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

// fever is inclusive of its limit and turns critical one degree above it.
func fever() Rule {
	return MetricRule{Name: string(MetricTemp) + ":high", On: MetricTemp, CheckF: func(v float64, t Thresholds) (Condition, bool) {
		if t.TempHigh == nil || v < *t.TempHigh {
			return Condition{}, false
		}
		sev := model.SeverityWarning
		if v >= *t.TempHigh+1 {
			sev = model.SeverityCritical
		}
		return Condition{
			Message:  fmt.Sprintf("Fever %s°C (>= %s°C)", num(v), num(*t.TempHigh)),
			Severity: sev,
		}, true
	}}
}

// recoveryMessage describes a metric returning inside its limits.
func recoveryMessage(m Metric, v float64) string {
	switch m {
	case MetricHR:
		return "HR back to " + num(v)
	case MetricSBP:
		return "SBP back to " + num(v)
	case MetricSpO2:
		return "SpO2 back to " + num(v) + "%"
	case MetricTemp:
		return "Temp back to " + num(v) + "°C"
	case MetricRR:
		return "RR back to " + num(v)
	default:
		return fmt.Sprintf("%s back to %s", m, num(v))
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
