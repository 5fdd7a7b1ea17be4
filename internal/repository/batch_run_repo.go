package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
)

// BatchRunRepository tracks batch invocations.
type BatchRunRepository struct {
	db *gorm.DB
}

// NewBatchRunRepository creates a new BatchRunRepository.
func NewBatchRunRepository(db *gorm.DB) *BatchRunRepository {
	return &BatchRunRepository{db: db}
}

// Start inserts a running batch row.
func (r *BatchRunRepository) Start(ctx context.Context, kind string, total int) (*domain.BatchRun, error) {
	now := time.Now()
	run := &domain.BatchRun{
		ID:         uuid.New().String(),
		Kind:       kind,
		Status:     domain.BatchRunRunning,
		TotalItems: total,
		StartedAt:  &now,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Finish stores the final counts of a batch run.
func (r *BatchRunRepository) Finish(ctx context.Context, run *domain.BatchRun) error {
	now := time.Now()
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Model(&domain.BatchRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":       run.Status,
			"succeeded":    run.Succeeded,
			"failed":       run.Failed,
			"rate_limited": run.RateLimited,
			"completed_at": now,
		}).Error
}

// GetByID retrieves a batch run.
func (r *BatchRunRepository) GetByID(ctx context.Context, id string) (*domain.BatchRun, error) {
	var run domain.BatchRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
