package alert

import "sync"

// RuleStore holds the live RuleSet. It is safe for concurrent use.
type RuleStore struct {
	mu    sync.RWMutex
	rules RuleSet
}

// NewRuleStore returns a store whose default scope is defaults.
func NewRuleStore(defaults Thresholds) *RuleStore {
	return &RuleStore{rules: RuleSet{
		Default:  defaults.clone(),
		Wards:    map[string]Thresholds{},
		Patients: map[string]Thresholds{},
	}}
}

// Snapshot returns a deep copy of every scope.
func (s *RuleStore) Snapshot() RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules.clone()
}

// SetDefault merges t into the default scope.
func (s *RuleStore) SetDefault(t Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules.Default = s.rules.Default.Merge(t)
}

// SetWard merges t into the ward's scope, creating it if needed.
func (s *RuleStore) SetWard(ward string, t Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules.Wards[ward] = s.rules.Wards[ward].Merge(t)
}

// DeleteWard drops the ward's scope. It reports whether one existed.
func (s *RuleStore) DeleteWard(ward string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rules.Wards[ward]
	delete(s.rules.Wards, ward)
	return ok
}

// SetPatient merges t into the patient's scope, creating it if needed.
func (s *RuleStore) SetPatient(patientID string, t Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules.Patients[patientID] = s.rules.Patients[patientID].Merge(t)
}

// DeletePatient drops the patient's scope. It reports whether one existed.
func (s *RuleStore) DeletePatient(patientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rules.Patients[patientID]
	delete(s.rules.Patients, patientID)
	return ok
}

// Resolve returns the effective limits for a patient. An empty ward skips the ward scope.
func (s *RuleStore) Resolve(patientID, ward string) Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.rules.Default.clone()
	if ward != "" {
		out = out.Merge(s.rules.Wards[ward])
	}
	return out.Merge(s.rules.Patients[patientID])
}
