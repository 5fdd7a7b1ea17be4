package domain

import "time"

// BatchRunStatus represents the status of a batch run.
type BatchRunStatus string

const (
	BatchRunRunning   BatchRunStatus = "running"
	BatchRunCompleted BatchRunStatus = "completed"
	BatchRunFailed    BatchRunStatus = "failed"
)

// Batch run kinds.
const (
	BatchKindUpload     = "upload"
	BatchKindReanalysis = "reanalysis"
)

// BatchRun records the progress and outcome counts of one batch invocation.
type BatchRun struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	Kind        string         `gorm:"type:text;not null;index" json:"kind"`
	Status      BatchRunStatus `gorm:"type:text;default:running" json:"status"`
	TotalItems  int            `gorm:"default:0" json:"total_items"`
	Succeeded   int            `gorm:"default:0" json:"succeeded"`
	Failed      int            `gorm:"default:0" json:"failed"`
	RateLimited int            `gorm:"default:0" json:"rate_limited"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for BatchRun.
func (BatchRun) TableName() string {
	return "batch_runs"
}
