package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// JobRequirement describes a role candidates are matched against.
type JobRequirement struct {
	ID                 string      `gorm:"type:text;primaryKey" json:"id"`
	Role               string      `gorm:"type:text;not null;index" json:"role"`
	Description        string      `gorm:"type:text" json:"description"`
	MinExperienceYears int         `json:"min_experience_years"`
	RequiredSkills     StringArray `gorm:"type:text" json:"required_skills"`
	PreferredSkills    StringArray `gorm:"type:text" json:"preferred_skills"`
	EducationLevel     string      `gorm:"type:text" json:"education_level"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// TableName returns the database table name for JobRequirement.
func (JobRequirement) TableName() string {
	return "job_requirements"
}

// Recommendation tags returned by the matcher.
const (
	RecommendationStrong   = "strong_match"
	RecommendationGood     = "good_match"
	RecommendationModerate = "moderate_match"
	RecommendationWeak     = "weak_match"
)

// MatchDetail is the structured part of a match, stored as a JSON blob.
type MatchDetail struct {
	MatchedSkills  []string `json:"matched_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Strengths      []string `json:"strengths"`
	Gaps           []string `json:"gaps"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// CandidateJobMatch is unique on (application, requirement); reruns overwrite it.
type CandidateJobMatch struct {
	ID               string         `gorm:"type:text;primaryKey" json:"id"`
	ApplicationID    string         `gorm:"type:text;not null;uniqueIndex:idx_match_pair" json:"application_id"`
	JobRequirementID string         `gorm:"type:text;not null;uniqueIndex:idx_match_pair" json:"job_requirement_id"`
	MatchScore       int            `gorm:"index" json:"match_score"`
	SkillsMatch      int            `json:"skills_match"`
	ExperienceMatch  int            `json:"experience_match"`
	EducationMatch   int            `json:"education_match"`
	Detail           datatypes.JSON `json:"detail"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SetDetail encodes d into the Detail column.
func (m *CandidateJobMatch) SetDetail(d MatchDetail) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.Detail = datatypes.JSON(b)
	return nil
}

// DecodeDetail returns the structured detail blob. An empty column yields a zero value.
func (m *CandidateJobMatch) DecodeDetail() (MatchDetail, error) {
	var d MatchDetail
	if len(m.Detail) == 0 {
		return d, nil
	}
	err := json.Unmarshal(m.Detail, &d)
	return d, err
}

// TableName returns the database table name for CandidateJobMatch.
func (CandidateJobMatch) TableName() string {
	return "candidate_job_matches"
}

// PipelineSettings holds externally editable run settings. There is a single row with ID 1.
type PipelineSettings struct {
	ID                     uint      `gorm:"primaryKey" json:"-"`
	NotificationThreshold  int       `json:"notification_threshold"`
	RecruiterNotifications bool      `json:"recruiter_notifications"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName returns the database table name for PipelineSettings.
func (PipelineSettings) TableName() string {
	return "pipeline_settings"
}
