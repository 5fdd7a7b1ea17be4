package domain

import "time"

// AIAnalysis is the persisted scoring output for one application.
// ApplicationID is the primary key, so re-analysis overwrites in place.
type AIAnalysis struct {
	ApplicationID   string    `gorm:"type:text;primaryKey" json:"application_id"`
	SkillsScore     int       `json:"skills_score"`
	ExperienceScore int       `json:"experience_score"`
	EducationScore  int       `json:"education_score"`
	OverallScore    int       `gorm:"index" json:"overall_score"`
	Recommendations string    `gorm:"type:text" json:"recommendations"`
	Summary         string    `gorm:"type:text" json:"summary"`
	Profile         string    `gorm:"type:text" json:"profile"`
	Model           string    `gorm:"type:text" json:"model"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for AIAnalysis.
func (AIAnalysis) TableName() string {
	return "ai_analyses"
}

// Skill is one extracted skill of an application.
type Skill struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ApplicationID string    `gorm:"type:text;not null;index" json:"application_id"`
	Name          string    `gorm:"type:text;not null" json:"name"`
	Proficiency   string    `gorm:"type:text" json:"proficiency"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Skill.
func (Skill) TableName() string {
	return "skills"
}

// AnalysisLease guards an application against concurrent analysis runs.
// ExpiresAt is stored as unix milliseconds so the acquire predicate compares
// plain integers on every driver.
type AnalysisLease struct {
	ApplicationID string    `gorm:"type:text;primaryKey" json:"application_id"`
	Holder        string    `gorm:"type:text;not null" json:"holder"`
	ExpiresAt     int64     `gorm:"not null;index" json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for AnalysisLease.
func (AnalysisLease) TableName() string {
	return "analysis_leases"
}
