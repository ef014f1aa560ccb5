package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/gittidev/vibe-socket-test/internal/domain/alert"
	"github.com/gittidev/vibe-socket-test/internal/domain/model"
	apperrors "github.com/gittidev/vibe-socket-test/internal/errors"
)

// AlertRuleService edits the alert thresholds at runtime.
type AlertRuleService struct {
	store  *alert.RuleStore
	logger *slog.Logger
}

// NewAlertRuleService constructs an AlertRuleService over store.
func NewAlertRuleService(store *alert.RuleStore, logger *slog.Logger) (*AlertRuleService, error) {
	if store == nil {
		return nil, errors.New("rule store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertRuleService{store: store, logger: logger.With("component", "alert_rules")}, nil
}

// Rules returns every scope.
func (s *AlertRuleService) Rules(_ context.Context) alert.RuleSet {
	return s.store.Snapshot()
}

// SetDefault merges t into the default scope.
func (s *AlertRuleService) SetDefault(ctx context.Context, t alert.Thresholds) error {
	if err := t.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid thresholds")
	}
	s.store.SetDefault(t)
	s.logger.InfoContext(ctx, "default alert rules updated")
	return nil
}

// SetWard merges t into a ward's scope.
func (s *AlertRuleService) SetWard(ctx context.Context, ward string, t alert.Thresholds) error {
	if err := validateWard(ward); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid thresholds")
	}
	s.store.SetWard(ward, t)
	s.logger.InfoContext(ctx, "ward alert rules updated", "ward", ward)
	return nil
}

// DeleteWard drops a ward's scope. Deleting a missing scope succeeds.
func (s *AlertRuleService) DeleteWard(ctx context.Context, ward string) error {
	if err := validateWard(ward); err != nil {
		return err
	}
	if s.store.DeleteWard(ward) {
		s.logger.InfoContext(ctx, "ward alert rules removed", "ward", ward)
	}
	return nil
}

// SetPatient merges t into a patient's scope.
func (s *AlertRuleService) SetPatient(ctx context.Context, patientID string, t alert.Thresholds) error {
	if err := model.ValidateSubjectKey(patientID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid patient id")
	}
	if err := t.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid thresholds")
	}
	s.store.SetPatient(patientID, t)
	s.logger.InfoContext(ctx, "patient alert rules updated", "patient_id", patientID)
	return nil
}

// DeletePatient drops a patient's scope. Deleting a missing scope succeeds.
func (s *AlertRuleService) DeletePatient(ctx context.Context, patientID string) error {
	if err := model.ValidateSubjectKey(patientID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid patient id")
	}
	if s.store.DeletePatient(patientID) {
		s.logger.InfoContext(ctx, "patient alert rules removed", "patient_id", patientID)
	}
	return nil
}

func validateWard(ward string) error {
	if strings.TrimSpace(ward) == "" || strings.IndexFunc(ward, unicode.IsControl) >= 0 {
		return apperrors.Wrap(errors.New("ward must be a non-blank name"), apperrors.ErrCodeValidation, "invalid ward")
	}
	return nil
}
