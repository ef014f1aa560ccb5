// Package job holds the in-process bookkeeping of the job pipeline: which subjects
// have a run in flight and how publish retries are spaced.
package job

import (
	"sync"
	"time"

	"github.com/gittidev/vibe-socket-test/internal/core"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// Registry records at most one in-flight job per subject key.
// The mutex only guards map access; it is never held while a job executes.
type Registry struct {
	mu      sync.Mutex
	running map[string]model.JobState
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		running: make(map[string]model.JobState),
		now:     time.Now,
	}
}

// TryStart marks subjectKey as running under jobID. It reports false when a job
// for the same subject is already in flight.
func (r *Registry) TryStart(subjectKey, jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.running[subjectKey]; busy {
		return false
	}
	r.running[subjectKey] = model.JobState{
		SubjectKey: subjectKey,
		JobID:      jobID,
		StartedAt:  r.now().UTC(),
	}
	return true
}

// Finish clears the in-flight marker for subjectKey. Unknown keys are ignored.
func (r *Registry) Finish(subjectKey string) {
	r.mu.Lock()
	delete(r.running, subjectKey)
	r.mu.Unlock()
}

// Status returns the in-flight state for subjectKey, if any.
func (r *Registry) Status(subjectKey string) (model.JobState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.running[subjectKey]
	return state, ok
}

// Len returns the number of subjects with a job in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

var _ core.JobRegistry = (*Registry)(nil)
