package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository handles job requirements and candidate matches.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateRequirement inserts a job requirement.
func (r *MatchRepository) CreateRequirement(ctx context.Context, req *domain.JobRequirement) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

// GetRequirement retrieves a job requirement by ID.
func (r *MatchRepository) GetRequirement(ctx context.Context, id string) (*domain.JobRequirement, error) {
	var req domain.JobRequirement
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// Upsert creates or overwrites the match for an (application, requirement) pair.
// The stored row keeps its original ID; m is refreshed from the database.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - m: match to write.
// Returns:
//   - error: non-nil if the upsert or reload fails.
func (r *MatchRepository) Upsert(ctx context.Context, m *domain.CandidateJobMatch) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "job_requirement_id"}},
		UpdateAll: true,
	}).Create(m).Error; err != nil {
		return err
	}
	return db.First(m, "application_id = ? AND job_requirement_id = ?", m.ApplicationID, m.JobRequirementID).Error
}

// ListByRequirement retrieves matches for a requirement, best first.
func (r *MatchRepository) ListByRequirement(ctx context.Context, requirementID string) ([]domain.CandidateJobMatch, error) {
	var matches []domain.CandidateJobMatch
	if err := r.db.WithContext(ctx).
		Where("job_requirement_id = ?", requirementID).
		Order("match_score DESC").
		Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// CountPair returns the number of match rows for an (application, requirement) pair.
func (r *MatchRepository) CountPair(ctx context.Context, applicationID, requirementID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CandidateJobMatch{}).
		Where("application_id = ? AND job_requirement_id = ?", applicationID, requirementID).
		Count(&count).Error
	return count, err
}
