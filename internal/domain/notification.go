package domain

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType identifies the trigger family of a notification.
type NotificationType string

const (
	NotificationAnalysisComplete NotificationType = "analysis_complete"
	NotificationHighScore        NotificationType = "high_score_candidate"
	NotificationRecruiterDigest  NotificationType = "recruiter_high_score"
	NotificationStatusChange     NotificationType = "status_change"
	NotificationPush             NotificationType = "push"
)

// NotificationStatus is the outcome of the latest delivery attempt.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// Channel values stored in NotificationRecord.Channel.
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// NotificationRecord is one entry of the append-only notification audit log.
// Body is kept so a failed email can be resent without rebuilding the template.
type NotificationRecord struct {
	ID               string             `gorm:"type:text;primaryKey" json:"id"`
	NotificationType NotificationType   `gorm:"type:text;not null;index" json:"notification_type"`
	Channel          string             `gorm:"type:text;default:email" json:"channel"`
	RecipientEmail   string             `gorm:"type:text" json:"recipient_email"`
	RecipientName    string             `gorm:"type:text" json:"recipient_name"`
	Subject          string             `gorm:"type:text" json:"subject"`
	Body             string             `gorm:"type:text" json:"-"`
	Status           NotificationStatus `gorm:"type:text;not null;index" json:"status"`
	ErrorMessage     string             `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount       int                `gorm:"not null;default:0" json:"retry_count"`
	LastRetryAt      *time.Time         `json:"last_retry_at,omitempty"`
	Metadata         datatypes.JSON     `json:"metadata,omitempty"`
	CreatedAt        time.Time          `gorm:"index" json:"created_at"`
}

// TableName returns the database table name for NotificationRecord.
func (NotificationRecord) TableName() string {
	return "notification_logs"
}

// NotificationTemplate overrides the built-in subject and body for a notification type.
type NotificationTemplate struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Type      string    `gorm:"type:text;not null;uniqueIndex" json:"type"`
	Subject   string    `gorm:"type:text" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	Active    bool      `gorm:"default:true" json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for NotificationTemplate.
func (NotificationTemplate) TableName() string {
	return "notification_templates"
}

// PushSubscription is one device endpoint registered by a user.
type PushSubscription struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index" json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256dh    string    `gorm:"type:text" json:"p256dh"`
	Auth      string    `gorm:"type:text" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PushSubscription.
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}

// Recruiter receives high-score digests when recruiter notifications are enabled.
type Recruiter struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;index" json:"user_id"`
	FullName  string    `gorm:"type:text" json:"full_name"`
	Email     string    `gorm:"type:text;not null" json:"email"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Recruiter.
func (Recruiter) TableName() string {
	return "recruiters"
}
