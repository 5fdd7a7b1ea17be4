package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/hireflow/internal/config"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/repository"
	"gorm.io/gorm"
)

// RunSettings are read once at the start of a matching run and passed down.
type RunSettings struct {
	Threshold              int  `json:"notification_threshold"`
	RecruiterNotifications bool `json:"recruiter_notifications"`
}

// SettingsLoader loads the settings for one run.
type SettingsLoader interface {
	Load(ctx context.Context) (RunSettings, error)
}

// SettingsProvider reads run settings from the store, falling back to
// configured defaults when no row has been saved.
type SettingsProvider struct {
	repo     *repository.SettingsRepository
	defaults RunSettings
}

// NewSettingsProvider creates a new SettingsProvider.
func NewSettingsProvider(repo *repository.SettingsRepository, defaults RunSettings) *SettingsProvider {
	defaults.Threshold = config.ClampThreshold(defaults.Threshold)
	return &SettingsProvider{repo: repo, defaults: defaults}
}

// Load implements SettingsLoader.
func (p *SettingsProvider) Load(ctx context.Context) (RunSettings, error) {
	row, err := p.repo.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.defaults, nil
	}
	if err != nil {
		return p.defaults, fmt.Errorf("load pipeline settings: %w", err)
	}
	return RunSettings{
		Threshold:              config.ClampThreshold(row.NotificationThreshold),
		RecruiterNotifications: row.RecruiterNotifications,
	}, nil
}

// Save stores new settings. The threshold is clamped to 0..100.
func (p *SettingsProvider) Save(ctx context.Context, s RunSettings) (RunSettings, error) {
	s.Threshold = config.ClampThreshold(s.Threshold)
	if err := p.repo.Save(ctx, &domain.PipelineSettings{
		NotificationThreshold:  s.Threshold,
		RecruiterNotifications: s.RecruiterNotifications,
	}); err != nil {
		return RunSettings{}, fmt.Errorf("save pipeline settings: %w", err)
	}
	return s, nil
}

// StaticSettings always returns the same settings.
type StaticSettings RunSettings

// Load implements SettingsLoader.
func (s StaticSettings) Load(context.Context) (RunSettings, error) {
	return RunSettings(s), nil
}
