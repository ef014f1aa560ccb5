package alert

import (
	"sync"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// DefaultThrottle is the minimum gap between two alerts for the same condition.
const DefaultThrottle = 60 * time.Second

// Outcome is what one reading produced. Either event may be nil.
type Outcome struct {
	Alert    *model.AlertEvent
	Resolved *model.AlertResolvedEvent
}

// Empty reports whether the reading produced no event.
func (o Outcome) Empty() bool {
	return o.Alert == nil && o.Resolved == nil
}

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	Rules    []Rule        // defaults to BuiltinRules()
	Throttle time.Duration // defaults to DefaultThrottle
}

// Evaluator tracks active conditions per patient and turns readings into alert events.
// A throttled condition stays active without being re-announced.
type Evaluator struct {
	rules    []Rule
	throttle time.Duration

	mu        sync.Mutex
	lastAlert map[string]time.Time
	active    map[string]map[string]Metric
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	rules := make([]Rule, 0, len(opts.Rules))
	for _, r := range opts.Rules {
		if r != nil {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		rules = BuiltinRules()
	}
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Evaluator{
		rules:     rules,
		throttle:  throttle,
		lastAlert: make(map[string]time.Time),
		active:    make(map[string]map[string]Metric),
	}
}

// Evaluate checks reading against t for patientID at the given time.
// Conditions on metrics missing from reading keep their previous state.
func (e *Evaluator) Evaluate(patientID string, t Thresholds, reading Reading, at time.Time) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.active[patientID]
	current := make(map[string]Metric, len(prev))
	var items []model.AlertItem

	for _, rule := range e.rules {
		key := patientID + ":" + rule.ID()
		value, ok := reading[rule.Metric()]
		if !ok {
			if m, was := prev[key]; was {
				current[key] = m
			}
			continue
		}
		cond, breached := rule.Check(value, t)
		if !breached {
			continue
		}
		current[key] = rule.Metric()
		if e.throttled(key, at) {
			continue
		}
		items = append(items, model.AlertItem{Key: key, Message: cond.Message, Severity: cond.Severity})
	}

	var resolvedKeys, resolvedMsgs []string
	for _, rule := range e.rules {
		key := patientID + ":" + rule.ID()
		if _, was := prev[key]; !was {
			continue
		}
		if _, still := current[key]; still {
			continue
		}
		resolvedKeys = append(resolvedKeys, key)
		resolvedMsgs = append(resolvedMsgs, recoveryMessage(rule.Metric(), reading[rule.Metric()]))
	}

	if len(current) == 0 {
		delete(e.active, patientID)
	} else {
		e.active[patientID] = current
	}

	var out Outcome
	ts := at.UnixMilli()
	if len(items) > 0 {
		msgs := make([]string, len(items))
		for i, item := range items {
			msgs[i] = item.Message
		}
		out.Alert = &model.AlertEvent{SubjectKey: patientID, Alerts: msgs, Items: items, Timestamp: ts}
	}
	if len(resolvedKeys) > 0 {
		out.Resolved = &model.AlertResolvedEvent{SubjectKey: patientID, Resolved: resolvedMsgs, Keys: resolvedKeys, Timestamp: ts}
	}
	return out
}

// Active returns the condition keys currently breached for patientID.
func (e *Evaluator) Active(patientID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.active[patientID]))
	for _, rule := range e.rules {
		key := patientID + ":" + rule.ID()
		if _, ok := e.active[patientID][key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// throttled records an announcement at `at` unless one was made less than the throttle ago.
func (e *Evaluator) throttled(key string, at time.Time) bool {
	if last, ok := e.lastAlert[key]; ok && at.Sub(last) < e.throttle {
		return true
	}
	e.lastAlert[key] = at
	return false
}
