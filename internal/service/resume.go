package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/storage"
	"gorm.io/gorm"
)

const defaultResumeLinkTTL = 15 * time.Minute

// ResumeLink is a time-limited download URL for an archived resume file.
type ResumeLink struct {
	ApplicationID string    `json:"applicationId"`
	FileName      string    `json:"fileName"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ResumeService hands out download links for archived resume files.
type ResumeService struct {
	apps    *repository.ApplicationRepository
	storage storage.ObjectStorage
	ttl     time.Duration
	logger  *logger.Logger
}

// NewResumeService creates a ResumeService. A nil store means archiving is
// disabled and every lookup reports ErrResumeNotStored.
func NewResumeService(apps *repository.ApplicationRepository, store storage.ObjectStorage, ttl time.Duration, log *logger.Logger) *ResumeService {
	if ttl <= 0 {
		ttl = defaultResumeLinkTTL
	}
	return &ResumeService{apps: apps, storage: store, ttl: ttl, logger: log}
}

// ResumeURL presigns a download URL for the resume file of an application.
// The object is checked first so a stale key never yields a dead link.
func (s *ResumeService) ResumeURL(ctx context.Context, applicationID string) (*ResumeLink, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if s.storage == nil || app.ResumeKey == "" {
		return nil, ErrResumeNotStored
	}

	ok, err := s.storage.Exists(ctx, app.ResumeKey)
	if err != nil {
		return nil, fmt.Errorf("check resume file: %w", err)
	}
	if !ok {
		logger.FromContextOr(ctx, s.logger).
			WithField(logger.FieldApplicationID, applicationID).
			WithField("key", app.ResumeKey).
			Warn("Resume file missing from storage")
		return nil, ErrResumeNotStored
	}

	url, err := s.storage.PresignURL(ctx, app.ResumeKey, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign resume file: %w", err)
	}
	return &ResumeLink{
		ApplicationID: app.ID,
		FileName:      app.ResumeName,
		URL:           url,
		ExpiresAt:     time.Now().Add(s.ttl).UTC(),
	}, nil
}
