package repository

import (
	"context"

	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisRepository persists AI analyses and the skills extracted with them.
type AnalysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new AnalysisRepository.
func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// SaveResult upserts the analysis keyed by application and replaces the
// application's skill set, all in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - analysis: analysis row; an existing row for the application is overwritten.
//   - skills: new skill set; prior skills are deleted, never merged.
// Returns:
//   - error: non-nil if any write fails; nothing is committed in that case.
func (r *AnalysisRepository) SaveResult(ctx context.Context, analysis *domain.AIAnalysis, skills []domain.Skill) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}},
			UpdateAll: true,
		}).Create(analysis).Error; err != nil {
			return err
		}

		if err := tx.Where("application_id = ?", analysis.ApplicationID).Delete(&domain.Skill{}).Error; err != nil {
			return err
		}
		if len(skills) == 0 {
			return nil
		}

		rows := make([]domain.Skill, len(skills))
		for i, s := range skills {
			rows[i] = domain.Skill{
				ApplicationID: analysis.ApplicationID,
				Name:          s.Name,
				Proficiency:   s.Proficiency,
			}
		}
		return tx.Create(&rows).Error
	})
}

// GetByApplication retrieves the analysis of an application.
func (r *AnalysisRepository) GetByApplication(ctx context.Context, applicationID string) (*domain.AIAnalysis, error) {
	var a domain.AIAnalysis
	if err := r.db.WithContext(ctx).First(&a, "application_id = ?", applicationID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListSkills retrieves the current skill set of an application.
func (r *AnalysisRepository) ListSkills(ctx context.Context, applicationID string) ([]domain.Skill, error) {
	var skills []domain.Skill
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("id ASC").
		Find(&skills).Error; err != nil {
		return nil, err
	}
	return skills, nil
}

// CountByApplication returns the number of analysis rows for an application.
func (r *AnalysisRepository) CountByApplication(ctx context.Context, applicationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.AIAnalysis{}).
		Where("application_id = ?", applicationID).
		Count(&count).Error
	return count, err
}
