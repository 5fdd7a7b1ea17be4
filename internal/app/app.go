// Package app wires configuration into the pipeline services shared by the
// HTTP server and the command line tool.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/api"
	"github.com/timmy/hireflow/internal/config"
	"github.com/timmy/hireflow/internal/delivery"
	"github.com/timmy/hireflow/internal/lease"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/retry"
	"github.com/timmy/hireflow/internal/service"
	"github.com/timmy/hireflow/internal/storage"
	"gorm.io/gorm"
)

// App holds the initialized pipeline.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	Applications  *repository.ApplicationRepository
	Extraction    *service.ExtractionService
	Analysis      *service.AnalysisService
	Batch         *service.BatchService
	Matching      *service.MatchingService
	Notifications *service.NotificationService
	Status        *service.StatusService
	Resumes       *service.ResumeService
	Settings      *service.SettingsProvider

	sqlDB *sql.DB
	redis *redis.Client
	log   *logger.Logger
}

// New connects every backend named in cfg and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = db
	if a.sqlDB, err = db.DB(); err != nil {
		return nil, fmt.Errorf("get sql.DB instance: %w", err)
	}

	provider, err := ai.NewProvider(ctx, &cfg.AI)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	log.WithField("provider", provider.Name()).Info("AI provider ready")

	objectStorage, err := a.initStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.initLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	apps := repository.NewApplicationRepository(db)
	analyses := repository.NewAnalysisRepository(db)
	matches := repository.NewMatchRepository(db)
	notifications := repository.NewNotificationRepository(db)
	runs := repository.NewBatchRunRepository(db)
	a.Applications = apps

	mailer, pusher := a.initDelivery()
	a.Notifications = service.NewNotificationService(notifications, apps, mailer, pusher, log, &service.NotificationConfig{
		Enabled:    cfg.Notification.Enabled,
		MaxRetries: cfg.Notification.MaxRetries,
		MailPolicy: retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay),
	})

	a.Settings = service.NewSettingsProvider(repository.NewSettingsRepository(db), service.RunSettings{
		Threshold:              cfg.Notification.ScoreThreshold,
		RecruiterNotifications: cfg.Notification.RecruiterNotifications,
	})

	a.Extraction = service.NewExtractionService(provider, retry.New(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay), log)

	a.Analysis = service.NewAnalysisService(apps, analyses, provider, locker, a.Notifications, log, &service.AnalysisConfig{
		DefaultProfile: cfg.Scoring.DefaultProfile,
		LeaseTTL:       cfg.Lease.TTL,
	})

	a.Batch = service.NewBatchService(apps, runs, a.Analysis, a.Extraction, objectStorage, log, &service.BatchConfig{
		Retry:          retry.New(cfg.Batch.Retry.MaxAttempts, cfg.Batch.Retry.BaseDelay),
		InterFileDelay: cfg.Batch.InterFileDelay,
		GroupSize:      cfg.Batch.GroupSize,
		StoragePrefix:  cfg.Storage.Prefix,
	})

	a.Matching = service.NewMatchingService(apps, analyses, matches, provider, a.Settings, a.Notifications, log, &service.MatchingConfig{
		Retry:          retry.New(cfg.Matching.Retry.MaxAttempts, cfg.Matching.Retry.BaseDelay),
		InterCallDelay: cfg.Matching.InterCallDelay,
		Model:          cfg.AI.Model,
	})

	a.Status = service.NewStatusService(apps, a.Notifications, log)
	a.Resumes = service.NewResumeService(apps, objectStorage, cfg.Storage.URLTTL, log)

	return a, nil
}

// Services returns the backends for api.SetupRouter.
func (a *App) Services() *api.Services {
	return &api.Services{
		Extractor:     a.Extraction,
		Analyzer:      a.Analysis,
		Batch:         a.Batch,
		Matcher:       a.Matching,
		Status:        a.Status,
		Resumes:       a.Resumes,
		Notifications: a.Notifications,
		Settings:      a.Settings,
		DB:            a.sqlDB,
	}
}

// Close waits for pending notifications and releases connections.
func (a *App) Close() {
	if a.Analysis != nil {
		a.Analysis.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close database")
		}
	}
}

func (a *App) initStorage(ctx context.Context) (storage.ObjectStorage, error) {
	objectStorage, err := storage.NewStorage(&a.Config.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if objectStorage == nil {
		a.log.Info("Object storage disabled, resume files are not archived")
		return nil, nil
	}
	if s3, ok := objectStorage.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure storage bucket: %w", err)
		}
	}
	return objectStorage, nil
}

func (a *App) initLocker(ctx context.Context) (lease.Locker, error) {
	cfg := a.Config.Lease
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.redis = client
		return lease.NewRedisLocker(client, cfg.Redis.Prefix), nil
	case "none":
		return lease.Noop{}, nil
	default:
		return lease.NewDatabaseLocker(repository.NewLeaseRepository(a.DB)), nil
	}
}

func (a *App) initDelivery() (delivery.Mailer, delivery.Pusher) {
	n := a.Config.Notification
	var mailer delivery.Mailer
	if n.Mail.APIKey != "" {
		mailer = delivery.NewHTTPMailer(&delivery.MailConfig{
			BaseURL:  n.Mail.BaseURL,
			APIKey:   n.Mail.APIKey,
			From:     n.Mail.From,
			FromName: n.Mail.FromName,
			Timeout:  n.Mail.Timeout,
		})
	} else {
		a.log.Warn("Mail API key not set, email notifications will be recorded as failed")
	}

	var pusher delivery.Pusher
	if n.Push.Enabled {
		pusher = delivery.NewPushGateway(&delivery.PushConfig{
			BaseURL: n.Push.BaseURL,
			APIKey:  n.Push.APIKey,
			Timeout: n.Push.Timeout,
		})
	}
	return mailer, pusher
}
