package model

import (
	"fmt"
	"strings"
)

// DefaultChannel is the process-wide channel name results are published under.
const DefaultChannel = "patient_data_channel"

// TopicMode selects how topic names are derived from subject keys.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TopicMode string

const (
	// TopicModeShared publishes every result to one topic; subscribers filter by subject.
	TopicModeShared TopicMode = "shared"
	// TopicModePerSubject publishes each subject's results to its own topic.
	TopicModePerSubject TopicMode = "per-subject"
)

// Valid returns true if the mode is known.
func (m TopicMode) Valid() bool {
	return m == TopicModeShared || m == TopicModePerSubject
}

// UnmarshalText implements encoding.TextUnmarshaler so the mode can be parsed from env.
func (m *TopicMode) UnmarshalText(text []byte) error {
	v := TopicMode(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = TopicModeShared
	}
	if !v.Valid() {
		return fmt.Errorf("invalid topic mode: %q (valid options: shared, per-subject)", v)
	}
	*m = v
	return nil
}

// Topics derives topic names from the configured channel.
type Topics struct {
	Channel string
	Mode    TopicMode
}

// NewTopics returns a Topics with defaults applied.
func NewTopics(channel string, mode TopicMode) Topics {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	if !mode.Valid() {
		mode = TopicModeShared
	}
	return Topics{Channel: channel, Mode: mode}
}

// PerSubject reports whether each subject has its own topic.
func (t Topics) PerSubject() bool {
	return t.Mode == TopicModePerSubject
}

// For returns the topic a result for subjectKey is published to.
func (t Topics) For(subjectKey string) string {
	if t.PerSubject() && subjectKey != "" {
		return t.Channel + "." + subjectKey
	}
	return t.Channel
}

// Subscription returns the topic a subscriber interested in subjectKey should subscribe to.
// An empty subjectKey means "every subject" and is only satisfiable in shared mode.
func (t Topics) Subscription(subjectKey string) (string, error) {
	if !t.PerSubject() {
		return t.Channel, nil
	}
	if err := ValidateSubjectKey(subjectKey); err != nil {
		return "", err
	}
	return t.For(subjectKey), nil
}

// alertsSuffix separates alert topics from result topics on the same channel.
const alertsSuffix = "_alerts"

// Alerts returns the topic alert events for subjectKey are published to.
func (t Topics) Alerts(subjectKey string) string {
	base := t.Channel + alertsSuffix
	if t.PerSubject() && subjectKey != "" {
		return base + "." + subjectKey
	}
	return base
}

// AlertSubscription is Subscription for alert topics.
func (t Topics) AlertSubscription(subjectKey string) (string, error) {
	if !t.PerSubject() {
		return t.Alerts(""), nil
	}
	if err := ValidateSubjectKey(subjectKey); err != nil {
		return "", err
	}
	return t.Alerts(subjectKey), nil
}
