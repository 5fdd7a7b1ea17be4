package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/hireflow/internal/domain"
	"gorm.io/gorm"
)

// ApplicationRepository handles application, candidate and status ledger rows.
type ApplicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new ApplicationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ApplicationRepository: repository instance bound to db.
func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateWithCandidate inserts a candidate and its application in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - candidate: candidate row; an empty ID is generated.
//   - app: application row; CandidateID is overwritten with the candidate's ID.
// Returns:
//   - error: non-nil if either insert fails.
func (r *ApplicationRepository) CreateWithCandidate(ctx context.Context, candidate *domain.Candidate, app *domain.Application) error {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Status == "" {
		app.Status = domain.StatusPending
	}
	app.CandidateID = candidate.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(candidate).Error; err != nil {
			return err
		}
		return tx.Create(app).Error
	})
}

// CreateCandidate inserts a candidate row.
func (r *ApplicationRepository) CreateCandidate(ctx context.Context, candidate *domain.Candidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(candidate).Error
}

// Create inserts an application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Status == "" {
		app.Status = domain.StatusPending
	}
	return r.db.WithContext(ctx).Create(app).Error
}

// GetByID retrieves an application with its candidate preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: application ID.
// Returns:
//   - *domain.Application: application if found.
//   - error: gorm.ErrRecordNotFound when missing.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	var app domain.Application
	if err := r.db.WithContext(ctx).Preload("Candidate").First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByIDs retrieves applications by ID, preserving no particular order.
func (r *ApplicationRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Application, error) {
	var apps []domain.Application
	if len(ids) == 0 {
		return apps, nil
	}
	if err := r.db.WithContext(ctx).Preload("Candidate").
		Where("id IN ?", ids).
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// ListByRoleAndStatus retrieves applications for a role in the given status, oldest first.
func (r *ApplicationRepository) ListByRoleAndStatus(ctx context.Context, role string, status domain.ApplicationStatus) ([]domain.Application, error) {
	var apps []domain.Application
	if err := r.db.WithContext(ctx).Preload("Candidate").
		Where("job_role = ? AND status = ?", role, status).
		Order("created_at ASC").
		Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// ListByStatus retrieves applications by status with a limit.
// A non-positive limit returns all rows.
func (r *ApplicationRepository) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int) ([]domain.Application, error) {
	var apps []domain.Application
	q := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// UpdateResumeText caches extracted text on the application.
func (r *ApplicationRepository) UpdateResumeText(ctx context.Context, id, text string) error {
	return r.db.WithContext(ctx).Model(&domain.Application{}).
		Where("id = ?", id).
		Update("resume_text", text).Error
}

// TransitionStatus sets the application status and appends a ledger entry in
// one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: application ID.
//   - to: new status.
//   - actor: who caused the transition.
//   - note: free-form note stored on the ledger entry.
// Returns:
//   - domain.ApplicationStatus: the status before the transition.
//   - error: gorm.ErrRecordNotFound when the application is missing.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, id string, to domain.ApplicationStatus, actor, note string) (domain.ApplicationStatus, error) {
	var old domain.ApplicationStatus
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app domain.Application
		if err := tx.Select("id", "status").First(&app, "id = ?", id).Error; err != nil {
			return err
		}
		old = app.Status

		if err := tx.Model(&domain.Application{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now()}).Error; err != nil {
			return err
		}

		return tx.Create(&domain.StatusHistoryEntry{
			ID:            uuid.New().String(),
			ApplicationID: id,
			OldStatus:     old,
			NewStatus:     to,
			Actor:         actor,
			Note:          note,
		}).Error
	})
	return old, err
}

// AppendHistory records a ledger entry for a transition applied outside
// TransitionStatus. The application row is left untouched.
func (r *ApplicationRepository) AppendHistory(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListHistory returns the status ledger of an application, oldest first.
func (r *ApplicationRepository) ListHistory(ctx context.Context, id string) ([]domain.StatusHistoryEntry, error) {
	var entries []domain.StatusHistoryEntry
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", id).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
