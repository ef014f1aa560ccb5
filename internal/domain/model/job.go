// Package model defines the core data types shared by the job runner, the event channel and the relays.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// MaxSubjectKeyLength bounds the subject key so it stays usable inside broker topic names.
const MaxSubjectKeyLength = 128

// JobStatus represents the terminal status of a job.
type JobStatus string

const (
	// JobStatusCompleted indicates the executor returned a payload.
	JobStatusCompleted JobStatus = "Completed"
	// JobStatusFailed indicates the executor returned an error or panicked.
	JobStatusFailed JobStatus = "Failed"
)

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobRequest is a single submission for a subject (patient).
type JobRequest struct {
	SubjectKey string `json:"patientId"`
}

// Validate checks the subject key is usable verbatim as part of a topic name.
func (r JobRequest) Validate() error {
	return ValidateSubjectKey(r.SubjectKey)
}

// ValidateSubjectKey rejects keys that are empty, too long, or contain whitespace or broker wildcards.
func ValidateSubjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: subject key is required", apperrors.ErrInvalidSubjectKey)
	}
	if len(key) > MaxSubjectKeyLength {
		return fmt.Errorf("%w: subject key exceeds %d bytes", apperrors.ErrInvalidSubjectKey, MaxSubjectKeyLength)
	}
	if strings.ContainsAny(key, "*>") {
		return fmt.Errorf("%w: subject key must not contain wildcards", apperrors.ErrInvalidSubjectKey)
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: subject key must not contain whitespace", apperrors.ErrInvalidSubjectKey)
	}
	return nil
}

// JobResult is the completion event published once per accepted JobRequest.
// Its JSON encoding is the broker and websocket wire format.
type JobResult struct {
	SubjectKey string    `json:"patientId"`
	Status     JobStatus `json:"status"`
	Data       string    `json:"data"`
}

// CompletedResult builds a successful result.
func CompletedResult(subjectKey, data string) JobResult {
	return JobResult{SubjectKey: subjectKey, Status: JobStatusCompleted, Data: data}
}

// FailedResult builds a failed result carrying the error description.
func FailedResult(subjectKey string, err error) JobResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return JobResult{SubjectKey: subjectKey, Status: JobStatusFailed, Data: msg}
}

// Encode returns the wire encoding of the result. Data is written as-is, without
// HTML escaping of <, > and &.
func (r JobResult) Encode() ([]byte, error) {
	b, err := encodeWire(r)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return b, nil
}

func encodeWire(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeJobResult parses a wire payload.
func DecodeJobResult(payload []byte) (JobResult, error) {
	var r JobResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return JobResult{}, fmt.Errorf("unmarshal job result: %w", err)
	}
	return r, nil
}

// Message is one raw payload received from a topic.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// JobState describes an in-flight job tracked by the registry.
type JobState struct {
	SubjectKey string    `json:"patientId"`
	JobID      string    `json:"jobId"`
	StartedAt  time.Time `json:"startedAt"`
}
