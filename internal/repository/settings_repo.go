package repository

import (
	"context"
	"time"

	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowID = 1

// SettingsRepository reads and writes the single pipeline_settings row.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row, or gorm.ErrRecordNotFound if none was saved.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.PipelineSettings, error) {
	var s domain.PipelineSettings
	if err := r.db.WithContext(ctx).First(&s, "id = ?", settingsRowID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Save creates or overwrites the settings row.
func (r *SettingsRepository) Save(ctx context.Context, s *domain.PipelineSettings) error {
	s.ID = settingsRowID
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(s).Error
}
