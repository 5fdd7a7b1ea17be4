package handler

import (
	"context"

	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/service"
)

// Extractor turns an uploaded document into text.
type Extractor interface {
	Extract(ctx context.Context, doc ai.Document) service.ExtractionResult
}

// BatchRunner runs batch intake and bulk re-analysis.
type BatchRunner interface {
	ProcessFiles(ctx context.Context, files []service.BatchFile, opts service.BatchOptions) (*service.BatchSummary, error)
	Reanalyze(ctx context.Context, applicationIDs []string, opts service.BatchOptions) (*service.BatchSummary, error)
	ReanalyzeStatus(ctx context.Context, status domain.ApplicationStatus, limit int, opts service.BatchOptions) (*service.BatchSummary, error)
}

// Matcher runs a matching run for one job requirement.
type Matcher interface {
	Match(ctx context.Context, requirementID string, applicationIDs []string) (*service.MatchResult, error)
}

// StatusChanger records status transitions.
type StatusChanger interface {
	ChangeStatus(ctx context.Context, applicationID string, newStatus domain.ApplicationStatus, actor, note string) (*service.StatusChangeResult, error)
	TriggerStatusChange(ctx context.Context, change service.StatusChange) (*service.StatusChangeResult, error)
	History(ctx context.Context, applicationID string) ([]domain.StatusHistoryEntry, error)
}

// ResumeLinker presigns download links for archived resume files.
type ResumeLinker interface {
	ResumeURL(ctx context.Context, applicationID string) (*service.ResumeLink, error)
}

// NotificationLog exposes the notification audit log.
type NotificationLog interface {
	List(ctx context.Context, f repository.NotificationFilter) ([]domain.NotificationRecord, int64, error)
	Retry(ctx context.Context, id string) (*domain.NotificationRecord, error)
}

// SettingsStore reads and writes the run settings.
type SettingsStore interface {
	Load(ctx context.Context) (service.RunSettings, error)
	Save(ctx context.Context, s service.RunSettings) (service.RunSettings, error)
}
