package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"gorm.io/gorm"
)

// StatusChangeResult reports a status change and whether it notified anyone.
type StatusChangeResult struct {
	ApplicationID string                   `json:"applicationId"`
	OldStatus     domain.ApplicationStatus `json:"oldStatus"`
	NewStatus     domain.ApplicationStatus `json:"newStatus"`
	Notified      bool                     `json:"notified"`
}

// ExternalActor is the ledger actor for transitions reported through
// TriggerStatusChange.
const ExternalActor = "external"

// StatusService records status transitions and emits status-change alerts.
type StatusService struct {
	apps     *repository.ApplicationRepository
	notifier StatusNotifier
	logger   *logger.Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(apps *repository.ApplicationRepository, notifier StatusNotifier, log *logger.Logger) *StatusService {
	return &StatusService{apps: apps, notifier: notifier, logger: log}
}

func (s *StatusService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// ChangeStatus moves an application to newStatus and appends the ledger
// entry in one transaction, then triggers the status-change notification.
// A notification failure is logged and never undoes the transition.
func (s *StatusService) ChangeStatus(ctx context.Context, applicationID string, newStatus domain.ApplicationStatus, actor, note string) (*StatusChangeResult, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	old, err := s.apps.TransitionStatus(ctx, applicationID, newStatus, actor, note)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}

	result := &StatusChangeResult{ApplicationID: applicationID, OldStatus: old, NewStatus: newStatus}
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldApplicationID: applicationID,
		"old_status":              old,
		"new_status":              newStatus,
		"actor":                   actor,
	}).Info("Application status changed")

	if old == newStatus {
		return result, nil
	}
	result.Notified = s.notify(ctx, StatusChange{ApplicationID: applicationID, OldStatus: old, NewStatus: newStatus})
	return result, nil
}

// TriggerStatusChange handles a transition reported by an external caller
// that already updated the row. The stored status must match the reported
// one; the transition is then appended to the ledger with actor "external"
// before any notification goes out.
func (s *StatusService) TriggerStatusChange(ctx context.Context, change StatusChange) (*StatusChangeResult, error) {
	if !change.NewStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, change.NewStatus)
	}
	app, err := s.apps.GetByID(ctx, change.ApplicationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app.Status != change.NewStatus {
		return nil, fmt.Errorf("%w: application is %q, not %q", ErrInvalidStatus, app.Status, change.NewStatus)
	}

	if err := s.apps.AppendHistory(ctx, &domain.StatusHistoryEntry{
		ApplicationID: change.ApplicationID,
		OldStatus:     change.OldStatus,
		NewStatus:     change.NewStatus,
		Actor:         ExternalActor,
		Note:          "reported by status trigger",
	}); err != nil {
		return nil, fmt.Errorf("record status change: %w", err)
	}

	result := &StatusChangeResult{
		ApplicationID: change.ApplicationID,
		OldStatus:     change.OldStatus,
		NewStatus:     change.NewStatus,
	}
	if !change.NewStatus.NotifyEligible() || change.OldStatus == change.NewStatus {
		return result, nil
	}
	result.Notified = s.notify(ctx, change)
	return result, nil
}

// History returns the status ledger of an application.
func (s *StatusService) History(ctx context.Context, applicationID string) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return s.apps.ListHistory(ctx, applicationID)
}

func (s *StatusService) notify(ctx context.Context, change StatusChange) bool {
	if s.notifier == nil {
		return false
	}
	sent, err := s.notifier.NotifyStatusChange(ctx, change)
	if err != nil {
		s.log(ctx).WithField(logger.FieldApplicationID, change.ApplicationID).WithError(err).Warn("Status-change notification failed")
	}
	return sent
}
