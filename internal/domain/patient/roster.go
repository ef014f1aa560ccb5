// Package patient holds the roster of monitored patients.
package patient

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/gittidev/vibe-socket-test/internal/domain/model"
)

// Roster is an immutable, ordered set of patients keyed by ID.
type Roster struct {
	patients []model.Patient
	byID     map[string]int
}

// DefaultPatients is the demo roster used when no file is configured.
func DefaultPatients() []model.Patient {
	return []model.Patient{
		{ID: "p001", Name: "Kim, Jiwoo", Ward: "ICU", Bed: "1A"},
		{ID: "p002", Name: "Park, Minseo", Ward: "ICU", Bed: "1B"},
		{ID: "p003", Name: "Lee, Juhwan", Ward: "ER", Bed: "03"},
	}
}

// NewRoster validates the entries: every ID must be a usable subject key and unique.
func NewRoster(patients []model.Patient) (*Roster, error) {
	r := &Roster{
		patients: slices.Clone(patients),
		byID:     make(map[string]int, len(patients)),
	}
	for i, p := range r.patients {
		if err := model.ValidateSubjectKey(p.ID); err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate patient id %q", i, p.ID)
		}
		r.byID[p.ID] = i
	}
	return r, nil
}

// LoadRoster reads a JSON array of patients from path. An empty path yields DefaultPatients.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return NewRoster(DefaultPatients())
	}
	//nolint:gosec // path comes from operator configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var patients []model.Patient
	if err := json.Unmarshal(raw, &patients); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return NewRoster(patients)
}

// List returns the patients in roster order.
func (r *Roster) List() []model.Patient {
	return slices.Clone(r.patients)
}

// Get looks a patient up by ID.
func (r *Roster) Get(id string) (model.Patient, bool) {
	i, ok := r.byID[id]
	if !ok {
		return model.Patient{}, false
	}
	return r.patients[i], true
}

// Ward returns the patient's ward, or "" for patients not on the roster.
func (r *Roster) Ward(id string) string {
	p, _ := r.Get(id)
	return p.Ward
}

// IDs returns every patient ID in roster order.
func (r *Roster) IDs() []string {
	ids := make([]string, len(r.patients))
	for i, p := range r.patients {
		ids[i] = p.ID
	}
	return ids
}
