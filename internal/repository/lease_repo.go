package repository

import (
	"context"
	"time"

	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaseRepository stores analysis leases in the relational store.
type LeaseRepository struct {
	db *gorm.DB
}

// NewLeaseRepository creates a new LeaseRepository.
func NewLeaseRepository(db *gorm.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// TryAcquire inserts a lease for key, or takes over an expired one, in a single statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: leased resource, the application ID.
//   - holder: opaque token identifying the new holder.
//   - ttl: lease lifetime.
//   - now: current time.
// Returns:
//   - bool: true if holder now owns the lease.
//   - error: non-nil if the statement fails.
func (r *LeaseRepository) TryAcquire(ctx context.Context, key, holder string, ttl time.Duration, now time.Time) (bool, error) {
	lease := domain.AnalysisLease{
		ApplicationID: key,
		Holder:        holder,
		ExpiresAt:     now.Add(ttl).UnixMilli(),
		CreatedAt:     now,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"holder", "expires_at", "created_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "analysis_leases.expires_at < ?", Vars: []interface{}{now.UnixMilli()}},
		}},
	}).Create(&lease)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release deletes the lease if holder still owns it.
func (r *LeaseRepository) Release(ctx context.Context, key, holder string) error {
	return r.db.WithContext(ctx).
		Where("application_id = ? AND holder = ?", key, holder).
		Delete(&domain.AnalysisLease{}).Error
}

// Get returns the current lease row for key.
func (r *LeaseRepository) Get(ctx context.Context, key string) (*domain.AnalysisLease, error) {
	var lease domain.AnalysisLease
	if err := r.db.WithContext(ctx).First(&lease, "application_id = ?", key).Error; err != nil {
		return nil, err
	}
	return &lease, nil
}
