package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/retry"
	"gorm.io/gorm"
)

// MatchingConfig holds configuration for the matching service.
type MatchingConfig struct {
	Retry          retry.Policy
	InterCallDelay time.Duration
	Model          string
	// Sleep waits between candidates; nil means retry.Wait.
	Sleep retry.SleepFunc
}

// MatchingService scores analyzed candidates against a job requirement.
type MatchingService struct {
	apps     *repository.ApplicationRepository
	analyses *repository.AnalysisRepository
	matches  *repository.MatchRepository
	matcher  ai.ChatModel
	settings SettingsLoader
	notifier HighScoreNotifier
	logger   *logger.Logger

	policy         retry.Policy
	interCallDelay time.Duration
	model          string
	sleep          retry.SleepFunc
}

// MatchSummary is one persisted match as returned to callers.
type MatchSummary struct {
	ApplicationID   string             `json:"applicationId"`
	CandidateName   string             `json:"candidateName"`
	MatchScore      int                `json:"match_score"`
	SkillsMatch     int                `json:"skills_match"`
	ExperienceMatch int                `json:"experience_match"`
	EducationMatch  int                `json:"education_match"`
	Detail          domain.MatchDetail `json:"detail"`
}

// MatchFailure records a candidate that could not be matched.
type MatchFailure struct {
	ApplicationID string `json:"applicationId"`
	Error         string `json:"error"`
	RateLimited   bool   `json:"rateLimited"`
}

// MatchResult is the outcome of one matching run.
type MatchResult struct {
	JobRequirementID           string               `json:"jobRequirementId"`
	Threshold                  int                  `json:"threshold"`
	Matches                    []MatchSummary       `json:"matches"`
	Failures                   []MatchFailure       `json:"failures,omitempty"`
	HighScoreCandidates        []HighScoreCandidate `json:"highScoreCandidates"`
	CandidateNotificationsSent int                  `json:"candidateNotificationsSent"`
	RecruiterNotificationsSent int                  `json:"recruiterNotificationsSent"`
}

// NewMatchingService creates a new MatchingService.
// Parameters:
//   - apps: candidate selection.
//   - analyses: candidate profiles (scores, skills, summary).
//   - matches: match persistence.
//   - matcher: external AI matcher.
//   - settings: threshold and recruiter flag, loaded once per run.
//   - notifier: high-score fan-out; nil disables notifications.
//   - log: fallback logger.
//   - cfg: retry policy and pacing.
func NewMatchingService(
	apps *repository.ApplicationRepository,
	analyses *repository.AnalysisRepository,
	matches *repository.MatchRepository,
	matcher ai.ChatModel,
	settings SettingsLoader,
	notifier HighScoreNotifier,
	log *logger.Logger,
	cfg *MatchingConfig,
) *MatchingService {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = retry.Wait
	}
	return &MatchingService{
		apps:           apps,
		analyses:       analyses,
		matches:        matches,
		matcher:        matcher,
		settings:       settings,
		notifier:       notifier,
		logger:         log,
		policy:         cfg.Retry,
		interCallDelay: cfg.InterCallDelay,
		model:          cfg.Model,
		sleep:          sleep,
	}
}

func (s *MatchingService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// candidateProfile is the JSON document sent to the matcher.
type candidateProfile struct {
	Skills          []profileSkill `json:"skills"`
	SkillsScore     int            `json:"skills_score"`
	ExperienceScore int            `json:"experience_score"`
	EducationScore  int            `json:"education_score"`
	OverallScore    int            `json:"overall_score"`
	Summary         string         `json:"summary"`
}

type profileSkill struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

type requirementDoc struct {
	Role               string   `json:"role"`
	Description        string   `json:"description"`
	MinExperienceYears int      `json:"min_experience_years"`
	RequiredSkills     []string `json:"required_skills"`
	PreferredSkills    []string `json:"preferred_skills"`
	EducationLevel     string   `json:"education_level"`
}

// Match scores candidates against a requirement. With no explicit IDs every
// analyzed application for the requirement's role is matched. Candidates are
// processed sequentially with a fixed delay between matcher calls; one
// candidate's failure is recorded and the run continues. Settings are read
// once at the start and candidates at or above the threshold are handed to
// the notifier.
func (s *MatchingService) Match(ctx context.Context, requirementID string, applicationIDs []string) (*MatchResult, error) {
	req, err := s.matches.GetRequirement(ctx, requirementID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequirementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job requirement %s: %w", requirementID, err)
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Using default pipeline settings")
	}

	var apps []domain.Application
	if len(applicationIDs) > 0 {
		apps, err = s.apps.ListByIDs(ctx, applicationIDs)
	} else {
		apps, err = s.apps.ListByRoleAndStatus(ctx, req.Role, domain.StatusAnalyzed)
	}
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ctx = s.log(ctx).WithField(logger.FieldJobRequirementID, req.ID).WithContext(ctx)
	start := time.Now()
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(apps),
		"threshold":       settings.Threshold,
	}).Info("Starting matching run")

	reqJSON, err := json.MarshalIndent(requirementDoc{
		Role:               req.Role,
		Description:        req.Description,
		MinExperienceYears: req.MinExperienceYears,
		RequiredSkills:     nonNil(req.RequiredSkills),
		PreferredSkills:    nonNil(req.PreferredSkills),
		EducationLevel:     req.EducationLevel,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode job requirement: %w", err)
	}

	result := &MatchResult{
		JobRequirementID:    req.ID,
		Threshold:           settings.Threshold,
		Matches:             []MatchSummary{},
		HighScoreCandidates: []HighScoreCandidate{},
	}
	for _, id := range missingIDs(applicationIDs, apps) {
		result.Failures = append(result.Failures, MatchFailure{ApplicationID: id, Error: ErrApplicationNotFound.Error()})
		s.log(ctx).WithField(logger.FieldApplicationID, id).Warn("Requested application does not exist")
	}

	for i := range apps {
		app := &apps[i]
		if i > 0 && s.interCallDelay > 0 {
			if err := s.sleep(ctx, s.interCallDelay); err != nil {
				for _, rest := range apps[i:] {
					result.Failures = append(result.Failures, MatchFailure{ApplicationID: rest.ID, Error: err.Error()})
				}
				break
			}
		}

		m, err := s.matchOne(ctx, req, string(reqJSON), app)
		if err != nil {
			result.Failures = append(result.Failures, MatchFailure{
				ApplicationID: app.ID,
				Error:         err.Error(),
				RateLimited:   IsRateLimited(err),
			})
			s.log(ctx).WithField(logger.FieldApplicationID, app.ID).WithError(err).Warn("Candidate match failed")
			continue
		}
		result.Matches = append(result.Matches, *m)

		if m.MatchScore >= settings.Threshold {
			name, email := candidateContact(app)
			result.HighScoreCandidates = append(result.HighScoreCandidates, HighScoreCandidate{
				ApplicationID:  app.ID,
				CandidateName:  name,
				CandidateEmail: email,
				MatchScore:     m.MatchScore,
			})
		}
	}

	if s.notifier != nil && len(result.HighScoreCandidates) > 0 {
		sent, err := s.notifier.NotifyHighScorers(ctx, req, result.HighScoreCandidates, settings)
		if err != nil {
			s.log(ctx).WithError(err).Warn("Some high-score notifications failed")
		}
		result.CandidateNotificationsSent = sent.CandidateNotificationsSent
		result.RecruiterNotificationsSent = sent.RecruiterNotificationsSent
	}

	logger.With(logger.Fields{
		"matched":     len(result.Matches),
		"failed":      len(result.Failures),
		"high_scores": len(result.HighScoreCandidates),
	}).WithCount(len(apps)).WithDuration(time.Since(start)).Info(ctx, "Matching run finished")

	return result, nil
}

func (s *MatchingService) matchOne(ctx context.Context, req *domain.JobRequirement, reqJSON string, app *domain.Application) (*MatchSummary, error) {
	analysis, err := s.analyses.GetByApplication(ctx, app.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("application %s has not been analyzed", app.ID)
	}
	if err != nil {
		return nil, err
	}
	skills, err := s.analyses.ListSkills(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	profile := candidateProfile{
		Skills:          make([]profileSkill, 0, len(skills)),
		SkillsScore:     analysis.SkillsScore,
		ExperienceScore: analysis.ExperienceScore,
		EducationScore:  analysis.EducationScore,
		OverallScore:    analysis.OverallScore,
		Summary:         analysis.Summary,
	}
	for _, sk := range skills {
		profile.Skills = append(profile.Skills, profileSkill{Name: sk.Name, Proficiency: sk.Proficiency})
	}
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, err
	}

	chat := ai.ChatRequest{
		Model:  s.model,
		System: prompts.MatchingSystemPrompt,
		User: prompts.Render(prompts.MatchingUserTemplate, map[string]string{
			"REQUIREMENT_JSON": reqJSON,
			"PROFILE_JSON":     string(profileJSON),
		}),
		JSON:        true,
		Temperature: 0.2,
	}
	raw, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.matcher.Complete(ctx, chat)
	})
	if err != nil {
		return nil, stageErr(StageScore, err)
	}

	out, err := ParseMatchOutput(raw)
	if err != nil {
		return nil, stageErr(StageParse, err)
	}

	row := &domain.CandidateJobMatch{
		ApplicationID:    app.ID,
		JobRequirementID: req.ID,
		MatchScore:       out.MatchScore,
		SkillsMatch:      out.SkillsMatch,
		ExperienceMatch:  out.ExperienceMatch,
		EducationMatch:   out.EducationMatch,
	}
	if err := row.SetDetail(out.Detail); err != nil {
		return nil, stageErr(StagePersist, err)
	}
	if err := s.matches.Upsert(ctx, row); err != nil {
		return nil, stageErr(StagePersist, err)
	}

	name, _ := candidateContact(app)
	return &MatchSummary{
		ApplicationID:   app.ID,
		CandidateName:   name,
		MatchScore:      out.MatchScore,
		SkillsMatch:     out.SkillsMatch,
		ExperienceMatch: out.ExperienceMatch,
		EducationMatch:  out.EducationMatch,
		Detail:          out.Detail,
	}, nil
}

// missingIDs returns the requested IDs with no loaded application, in
// request order and without duplicates.
func missingIDs(requested []string, apps []domain.Application) []string {
	found := make(map[string]bool, len(apps))
	for _, app := range apps {
		found[app.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true
		}
	}
	return missing
}
