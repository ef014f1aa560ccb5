package metrics

import (
	obserrors "github.com/gittidev/vibe-socket-test/internal/observability/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// AlertMetric describes one reading handled by the alert monitor.
type AlertMetric struct {
	Result   string         // success when evaluated, noop when skipped, error when publishing failed
	Raised   map[string]int // raised items by severity
	Resolved int
	Err      error
}

// EmitAlertEvaluation counts evaluated readings plus the alerts they raised and resolved.
func EmitAlertEvaluation(sink statsd.Sink, in AlertMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("alert.evaluation", 1, tags)
	for severity, n := range in.Raised {
		if n > 0 {
			sink.Count("alert.raised", int64(n), map[string]string{"severity": severity})
		}
	}
	if in.Resolved > 0 {
		sink.Count("alert.resolved", int64(in.Resolved), nil)
	}
}
