package model

import (
	"encoding/json"
	"fmt"
)

// Severity grades a raised alert.
type Severity string

const (
	// SeverityWarning marks a breach close to its threshold.
	SeverityWarning Severity = "warning"
	// SeverityCritical marks a breach far past its threshold.
	SeverityCritical Severity = "critical"
)

// Alert event types carried in the "type" field of alert frames.
const (
	AlertEventType         = "alert"
	AlertResolvedEventType = "alert_resolved"
)

// AlertItem is one condition raised by an alert event.
type AlertItem struct {
	Key      string   `json:"key"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// AlertEvent announces newly raised threshold breaches for a subject.
// Alerts repeats the item messages for clients that only render text.
type AlertEvent struct {
	Type       string      `json:"type"`
	SubjectKey string      `json:"patientId"`
	Alerts     []string    `json:"alerts"`
	Items      []AlertItem `json:"items"`
	Timestamp  int64       `json:"timestamp"`
}

// Encode returns the wire encoding of the event.
func (e AlertEvent) Encode() ([]byte, error) {
	e.Type = AlertEventType
	b, err := encodeWire(e)
	if err != nil {
		return nil, fmt.Errorf("marshal alert event: %w", err)
	}
	return b, nil
}

// AlertResolvedEvent announces conditions that were active and no longer are.
type AlertResolvedEvent struct {
	Type       string   `json:"type"`
	SubjectKey string   `json:"patientId"`
	Resolved   []string `json:"resolved"`
	Keys       []string `json:"keys"`
	Timestamp  int64    `json:"timestamp"`
}

// Encode returns the wire encoding of the event.
func (e AlertResolvedEvent) Encode() ([]byte, error) {
	e.Type = AlertResolvedEventType
	b, err := encodeWire(e)
	if err != nil {
		return nil, fmt.Errorf("marshal alert resolved event: %w", err)
	}
	return b, nil
}

// PeekSubjectKey reads only the patientId field of any wire payload.
func PeekSubjectKey(payload []byte) (string, error) {
	var head struct {
		SubjectKey string `json:"patientId"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", fmt.Errorf("unmarshal payload subject: %w", err)
	}
	return head.SubjectKey, nil
}
