package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/lease"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/repository"
	"gorm.io/gorm"
)

// PipelineActor is recorded on status transitions made by the orchestrator.
const PipelineActor = "pipeline"

// AnalysisService drives the per-application scoring state machine:
// pending -> analyzing -> analyzed, or back to pending on failure.
type AnalysisService struct {
	apps     *repository.ApplicationRepository
	analyses *repository.AnalysisRepository
	scorer   ai.ChatModel
	locker   lease.Locker
	notifier AnalysisNotifier
	logger   *logger.Logger

	defaultProfile string
	leaseTTL       time.Duration

	pending sync.WaitGroup
	now     func() time.Time
}

// AnalysisConfig holds configuration for the analysis service.
type AnalysisConfig struct {
	DefaultProfile string
	LeaseTTL       time.Duration
}

// AnalyzeRequest is one analysis invocation. ResumeText falls back to the
// text cached on the application when empty.
type AnalyzeRequest struct {
	ApplicationID string `json:"applicationId"`
	ResumeText    string `json:"resumeText"`
	CoverLetter   string `json:"coverLetter"`
	Profile       string `json:"profile,omitempty"`
	// Degraded marks ResumeText as the extraction placeholder. It is
	// analyzed but never cached, so a later run extracts the file again.
	Degraded bool `json:"-"`
}

// AnalysisResult is the outcome of a successful analysis.
type AnalysisResult struct {
	Analysis *domain.AIAnalysis `json:"analysis"`
	Skills   []domain.Skill     `json:"skills"`
}

// NewAnalysisService creates a new AnalysisService.
// Parameters:
//   - apps: application rows and status ledger.
//   - analyses: analysis and skill persistence.
//   - scorer: external AI scorer.
//   - locker: analysis lease; nil disables leasing.
//   - notifier: completion notifier; nil disables the side effect.
//   - log: fallback logger.
//   - cfg: default profile and lease TTL.
func NewAnalysisService(
	apps *repository.ApplicationRepository,
	analyses *repository.AnalysisRepository,
	scorer ai.ChatModel,
	locker lease.Locker,
	notifier AnalysisNotifier,
	log *logger.Logger,
	cfg *AnalysisConfig,
) *AnalysisService {
	if locker == nil {
		locker = lease.Noop{}
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnalysisService{
		apps:           apps,
		analyses:       analyses,
		scorer:         scorer,
		locker:         locker,
		notifier:       notifier,
		logger:         log,
		defaultProfile: cfg.DefaultProfile,
		leaseTTL:       ttl,
		now:            time.Now,
	}
}

func (s *AnalysisService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Analyze scores one application. The application lease is taken before
// any state changes; a concurrent run fails fast with ErrAnalysisInProgress.
// On a score, parse or persist failure the status is reverted to pending and
// the error is returned as a *StageError. It does not retry.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	profileName := req.Profile
	if profileName == "" {
		profileName = s.defaultProfile
	}
	profile, err := prompts.LookupProfile(profileName)
	if err != nil {
		return nil, err
	}

	app, err := s.apps.GetByID(ctx, req.ApplicationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load application %s: %w", req.ApplicationID, err)
	}

	resumeText := req.ResumeText
	if strings.TrimSpace(resumeText) == "" {
		resumeText = app.ResumeText
	}
	if strings.TrimSpace(resumeText) == "" {
		return nil, ErrEmptyResume
	}
	coverLetter := req.CoverLetter
	if coverLetter == "" {
		coverLetter = app.CoverLetter
	}

	ctx = s.log(ctx).WithField(logger.FieldApplicationID, app.ID).WithContext(ctx)
	log := s.log(ctx)

	token, err := s.locker.Acquire(ctx, app.ID, s.leaseTTL)
	if errors.Is(err, lease.ErrNotHeld) {
		log.Warn("Analysis already in progress, rejecting duplicate request")
		return nil, ErrAnalysisInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire analysis lease: %w", err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), app.ID, token); err != nil {
			log.WithError(err).Warn("Failed to release analysis lease")
		}
	}()

	start := time.Now()
	if _, err := s.apps.TransitionStatus(ctx, app.ID, domain.StatusAnalyzing, PipelineActor, "analysis started"); err != nil {
		return nil, fmt.Errorf("mark application analyzing: %w", err)
	}
	if req.ResumeText != "" && !req.Degraded && req.ResumeText != app.ResumeText {
		if err := s.apps.UpdateResumeText(ctx, app.ID, req.ResumeText); err != nil {
			log.WithError(err).Warn("Failed to cache resume text")
		}
	}

	result, err := s.run(ctx, app.ID, profile, resumeText, coverLetter)
	if err != nil {
		s.revert(ctx, app.ID, err)
		logger.With(logger.Fields{
			logger.FieldApplicationID: app.ID,
			"stage":                   FailedStage(err),
			"profile":                 profile.Name,
		}).WithDuration(time.Since(start)).Warn(ctx, "Analysis failed: %v", err)
		return nil, err
	}

	if _, err := s.apps.TransitionStatus(ctx, app.ID, domain.StatusAnalyzed, PipelineActor, "analysis completed"); err != nil {
		s.revert(ctx, app.ID, err)
		return nil, stageErr(StagePersist, fmt.Errorf("mark application analyzed: %w", err))
	}

	logger.With(logger.Fields{
		logger.FieldApplicationID: app.ID,
		"profile":                 profile.Name,
		"overall_score":           result.Analysis.OverallScore,
	}).WithCount(len(result.Skills)).WithDuration(time.Since(start)).Info(ctx, "Analysis completed")

	s.notifyAsync(ctx, app, result.Analysis)
	return result, nil
}

func (s *AnalysisService) run(ctx context.Context, appID string, profile prompts.Profile, resumeText, coverLetter string) (*AnalysisResult, error) {
	raw, err := s.scorer.Complete(ctx, ai.ChatRequest{
		Model:       profile.Model,
		System:      profile.SystemPrompt,
		User:        profile.RenderUser(resumeText, coverLetter),
		JSON:        true,
		Temperature: profile.Temperature,
	})
	if err != nil {
		return nil, stageErr(StageScore, err)
	}

	out, err := ParseScoringOutput(raw, profile.ScoreFields)
	if err != nil {
		return nil, stageErr(StageParse, err)
	}

	analysis := &domain.AIAnalysis{
		ApplicationID:   appID,
		SkillsScore:     out.SkillsScore,
		ExperienceScore: out.ExperienceScore,
		EducationScore:  out.EducationScore,
		OverallScore:    out.OverallScore,
		Recommendations: out.Recommendations,
		Summary:         out.Summary,
		Profile:         profile.Name,
		Model:           profile.Model,
		AnalyzedAt:      s.now(),
	}
	if err := s.analyses.SaveResult(ctx, analysis, out.Skills); err != nil {
		return nil, stageErr(StagePersist, err)
	}

	skills, err := s.analyses.ListSkills(ctx, appID)
	if err != nil {
		return nil, stageErr(StagePersist, err)
	}
	return &AnalysisResult{Analysis: analysis, Skills: skills}, nil
}

// revert puts the application back to pending so it can be retried manually.
func (s *AnalysisService) revert(ctx context.Context, appID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	note := fmt.Sprintf("analysis failed at %s stage", FailedStage(cause))
	if _, err := s.apps.TransitionStatus(ctx, appID, domain.StatusPending, PipelineActor, note); err != nil {
		s.log(ctx).WithError(err).Error("Failed to revert application to pending")
	}
}

// notifyAsync sends the completion notification without blocking the caller.
// A failure is only logged; it never touches the application status.
func (s *AnalysisService) notifyAsync(ctx context.Context, app *domain.Application, analysis *domain.AIAnalysis) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.NotifyAnalysisComplete(ctx, app, analysis); err != nil {
			s.log(ctx).WithError(err).Warn("Analysis-complete notification failed")
		}
	}()
}

// Wait blocks until in-flight completion notifications finish.
func (s *AnalysisService) Wait() {
	s.pending.Wait()
}
