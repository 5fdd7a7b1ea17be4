package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ApplicationStatus is the pipeline state of an application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusAnalyzing ApplicationStatus = "analyzing"
	StatusAnalyzed  ApplicationStatus = "analyzed"
	StatusReviewed  ApplicationStatus = "reviewed"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusHired     ApplicationStatus = "hired"
	StatusRejected  ApplicationStatus = "rejected"
)

var knownStatuses = map[ApplicationStatus]bool{
	StatusPending:   true,
	StatusAnalyzing: true,
	StatusAnalyzed:  true,
	StatusReviewed:  true,
	StatusInterview: true,
	StatusOffer:     true,
	StatusHired:     true,
	StatusRejected:  true,
}

// Valid reports whether s is one of the known application statuses.
func (s ApplicationStatus) Valid() bool {
	return knownStatuses[s]
}

// NotifyEligible reports whether a transition into s triggers a status-change notification.
func (s ApplicationStatus) NotifyEligible() bool {
	switch s {
	case StatusInterview, StatusOffer, StatusHired:
		return true
	}
	return false
}

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Candidate is the person behind one or more applications.
type Candidate struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	FullName  string    `gorm:"type:text" json:"full_name"`
	Email     string    `gorm:"type:text;index:idx_candidates_email" json:"email"`
	UserID    string    `gorm:"type:text;index" json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Candidate.
func (Candidate) TableName() string {
	return "candidates"
}

// Application is one candidate's submission for a role.
// ResumeKey references the original file in object storage; ResumeText caches
// the extracted text so re-analysis does not need to extract again.
type Application struct {
	ID          string            `gorm:"type:text;primaryKey" json:"id"`
	CandidateID string            `gorm:"type:text;not null;index" json:"candidate_id"`
	JobRole     string            `gorm:"type:text;index:idx_applications_role_status" json:"job_role"`
	ResumeKey   string            `gorm:"type:text" json:"resume_key,omitempty"`
	ResumeName  string            `gorm:"type:text" json:"resume_name,omitempty"`
	ResumeMIME  string            `gorm:"type:text" json:"resume_mime,omitempty"`
	ResumeText  string            `gorm:"type:text" json:"-"`
	CoverLetter string            `gorm:"type:text" json:"cover_letter,omitempty"`
	Status      ApplicationStatus `gorm:"type:text;index:idx_applications_role_status;default:pending" json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID" json:"candidate,omitempty"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string {
	return "applications"
}

// StatusHistoryEntry is one row of the append-only status ledger.
type StatusHistoryEntry struct {
	ID            string            `gorm:"type:text;primaryKey" json:"id"`
	ApplicationID string            `gorm:"type:text;not null;index" json:"application_id"`
	OldStatus     ApplicationStatus `gorm:"type:text" json:"old_status"`
	NewStatus     ApplicationStatus `gorm:"type:text;not null" json:"new_status"`
	Actor         string            `gorm:"type:text" json:"actor"`
	Note          string            `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}

// TableName returns the database table name for StatusHistoryEntry.
func (StatusHistoryEntry) TableName() string {
	return "status_history"
}
