package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationFilter narrows a notification history listing.
type NotificationFilter struct {
	Type   domain.NotificationType
	Status domain.NotificationStatus
	Limit  int
	Offset int
}

// NotificationRepository handles the notification audit log, templates,
// push subscriptions and recruiters.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create appends a record to the audit log.
func (r *NotificationRepository) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetByID retrieves an audit record by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	var rec domain.NotificationRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// List retrieves audit records, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - f: optional type/status filter and pagination.
// Returns:
//   - []domain.NotificationRecord: records for the requested page.
//   - int64: total number of records matching the filter.
//   - error: non-nil if the query fails.
func (r *NotificationRepository) List(ctx context.Context, f NotificationFilter) ([]domain.NotificationRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.NotificationRecord{})
	if f.Type != "" {
		q = q.Where("notification_type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []domain.NotificationRecord
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ClaimRetry atomically increments retry_count and stamps last_retry_at, but
// only while retry_count is below maxRetries.
// Returns:
//   - bool: false when the record has no retry budget left (or does not exist).
//   - error: non-nil if the update fails.
func (r *NotificationRepository) ClaimRetry(ctx context.Context, id string, maxRetries int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.NotificationRecord{}).
		Where("id = ? AND retry_count < ?", id, maxRetries).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_retry_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateOutcome records the result of the latest delivery attempt.
func (r *NotificationRepository) UpdateOutcome(ctx context.Context, id string, status domain.NotificationStatus, errMsg string) error {
	return r.db.WithContext(ctx).Model(&domain.NotificationRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
		}).Error
}

// GetTemplate retrieves the active template for a notification type.
func (r *NotificationRepository) GetTemplate(ctx context.Context, notificationType string) (*domain.NotificationTemplate, error) {
	var tpl domain.NotificationTemplate
	if err := r.db.WithContext(ctx).
		Where("type = ? AND active = ?", notificationType, true).
		First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// UpsertTemplate creates or replaces the template for its type.
func (r *NotificationRepository) UpsertTemplate(ctx context.Context, tpl *domain.NotificationTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "body", "active", "updated_at"}),
	}).Create(tpl).Error
}

// ListSubscriptions retrieves the push subscriptions of a user.
func (r *NotificationRepository) ListSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	var subs []domain.PushSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// CreateSubscription registers a push endpoint.
func (r *NotificationRepository) CreateSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

// ListActiveRecruiters retrieves recruiters that receive high-score digests.
func (r *NotificationRepository) ListActiveRecruiters(ctx context.Context) ([]domain.Recruiter, error) {
	var recruiters []domain.Recruiter
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at ASC").Find(&recruiters).Error; err != nil {
		return nil, err
	}
	return recruiters, nil
}

// CreateRecruiter inserts a recruiter.
func (r *NotificationRepository) CreateRecruiter(ctx context.Context, rec *domain.Recruiter) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}
