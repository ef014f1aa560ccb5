package metrics

import (
	obserrors "github.com/gittidev/vibe-socket-test/internal/observability/errors"
	"github.com/gittidev/vibe-socket-test/internal/observability/statsd"
)

// RelayMetric describes a relay state transition.
type RelayMetric struct {
	State  string
	Reason string
	Err    error
}

// EmitRelayTransition counts relay state changes, tagging close reasons and error classes.
func EmitRelayTransition(sink statsd.Sink, in RelayMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"state": in.State}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("relay.transition", 1, tags)
}

// EmitRelayActive reports the number of live relays.
func EmitRelayActive(sink statsd.Sink, active int) {
	if sink == nil {
		return
	}
	sink.Gauge("relay.active", float64(active), nil)
}

// EmitRelayDelivered counts frames written to clients.
func EmitRelayDelivered(sink statsd.Sink, filtered bool) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if filtered {
		result = ResultNoop
	}
	sink.Count("relay.message", 1, map[string]string{"result": result})
}
