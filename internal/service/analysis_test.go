package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/delivery"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/lease"
	"github.com/timmy/hireflow/internal/prompts"
	"github.com/timmy/hireflow/internal/retry"
)

func newTestAnalysis(r testRepos, scorer ai.ChatModel, notifier AnalysisNotifier) *AnalysisService {
	return NewAnalysisService(r.apps, r.analyses, scorer, lease.NewDatabaseLocker(r.leases), notifier, testLogger,
		&AnalysisConfig{DefaultProfile: "standard", LeaseTTL: time.Minute})
}

func statusPath(t *testing.T, r testRepos, appID string) []domain.ApplicationStatus {
	t.Helper()
	entries, err := r.apps.ListHistory(context.Background(), appID)
	require.NoError(t, err)
	path := []domain.ApplicationStatus{}
	for i, e := range entries {
		if i == 0 {
			path = append(path, e.OldStatus)
		}
		path = append(path, e.NewStatus)
	}
	return path
}

func TestAnalysisService_AnalyzePersistsScoresAndSkills(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	mailer := &fakeMailer{}
	svc := newTestAnalysis(r, staticModel(scoringJSON), newTestNotifier(r, mailer, nil))

	res, err := svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "5 years Python backend engineer"})
	require.NoError(t, err)
	svc.Wait()

	for _, score := range []int{res.Analysis.SkillsScore, res.Analysis.ExperienceScore, res.Analysis.EducationScore, res.Analysis.OverallScore} {
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
	assert.NotEmpty(t, res.Skills)

	assert.Equal(t, []domain.ApplicationStatus{domain.StatusPending, domain.StatusAnalyzing, domain.StatusAnalyzed}, statusPath(t, r, app.ID))

	skills, err := r.analyses.ListSkills(ctx, app.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(skills), 1)

	stored, err := r.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, stored.Status)
	assert.Equal(t, "5 years Python backend engineer", stored.ResumeText)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "grace@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, "78/100")
	assert.Equal(t, 1, countNotifications(t, r, domain.NotificationAnalysisComplete))
}

func TestAnalysisService_ReanalysisOverwrites(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")

	scorer := &fakeModel{fn: func(call int, _ ai.ChatRequest) (string, error) {
		if call == 1 {
			return scoringJSON, nil
		}
		return `{"skills_score": 90, "experience_score": 88, "education_score": 80, "overall_score": 91,
			"skills": ["Go", "Kubernetes", "PostgreSQL"], "recommendations": "Hire.", "summary": "Second pass."}`, nil
	}}
	svc := newTestAnalysis(r, scorer, nil)

	_, err := svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "first resume"})
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "second resume"})
	require.NoError(t, err)

	count, err := r.analyses.CountByApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	got, err := r.analyses.GetByApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, 91, got.OverallScore)
	assert.Equal(t, "Second pass.", got.Summary)

	skills, err := r.analyses.ListSkills(ctx, app.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"Go", "Kubernetes", "PostgreSQL"}, names)
}

func TestAnalysisService_FailureRevertsToPending(t *testing.T) {
	tests := []struct {
		name   string
		scorer *fakeModel
		stage  Stage
	}{
		{
			name:   "malformed output",
			scorer: staticModel("I cannot score this resume."),
			stage:  StageParse,
		},
		{
			name:   "missing score field",
			scorer: staticModel(`{"skills_score": 50, "summary": "partial"}`),
			stage:  StageParse,
		},
		{
			name: "rate limited scorer",
			scorer: &fakeModel{fn: func(int, ai.ChatRequest) (string, error) {
				return "", &retry.HTTPError{StatusCode: 429, Message: "quota exceeded"}
			}},
			stage: StageScore,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRepos(t)
			app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
			mailer := &fakeMailer{}
			svc := newTestAnalysis(r, tc.scorer, newTestNotifier(r, mailer, nil))

			_, err := svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "some resume"})
			require.Error(t, err)
			svc.Wait()
			assert.Equal(t, tc.stage, FailedStage(err))

			stored, err := r.apps.GetByID(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, stored.Status)
			assert.Equal(t, []domain.ApplicationStatus{domain.StatusPending, domain.StatusAnalyzing, domain.StatusPending}, statusPath(t, r, app.ID))

			count, err := r.analyses.CountByApplication(ctx, app.ID)
			require.NoError(t, err)
			assert.Zero(t, count)
			assert.Empty(t, mailer.Sent())
		})
	}
}

func TestAnalysisService_NotificationFailureKeepsAnalysis(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	mailer := &fakeMailer{fail: func(delivery.Email) error { return errors.New("smtp: connection refused") }}
	svc := newTestAnalysis(r, staticModel(scoringJSON), newTestNotifier(r, mailer, nil))

	res, err := svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "5 years Python backend engineer"})
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, 78, res.Analysis.OverallScore)

	stored, err := r.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, stored.Status)
	assert.Equal(t, []domain.ApplicationStatus{domain.StatusPending, domain.StatusAnalyzing, domain.StatusAnalyzed}, statusPath(t, r, app.ID))

	analysis, err := r.analyses.GetByApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Analysis.OverallScore, analysis.OverallScore)

	assert.Empty(t, mailer.Sent())
	failed, total, err := r.notifications.List(ctx, repositoryFilter(domain.NotificationAnalysisComplete, domain.NotificationFailed))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "connection refused")
}

func TestAnalysisService_RateLimitIsRetryable(t *testing.T) {
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	svc := newTestAnalysis(r, &fakeModel{fn: func(int, ai.ChatRequest) (string, error) {
		return "", &retry.HTTPError{StatusCode: 429}
	}}, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{ApplicationID: app.ID, ResumeText: "resume"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.True(t, errors.Is(err, retry.ErrRateLimited))
}

func TestAnalysisService_LeaseRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	scorer := staticModel(scoringJSON)
	svc := newTestAnalysis(r, scorer, nil)

	locker := lease.NewDatabaseLocker(r.leases)
	token, err := locker.Acquire(ctx, app.ID, time.Minute)
	require.NoError(t, err)

	_, err = svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "resume"})
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	assert.Zero(t, scorer.Calls())

	stored, err := r.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	require.NoError(t, locker.Release(ctx, app.ID, token))
	_, err = svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "resume"})
	require.NoError(t, err)
}

func TestAnalysisService_RejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	scorer := staticModel(scoringJSON)
	svc := newTestAnalysis(r, scorer, nil)

	_, err := svc.Analyze(ctx, AnalyzeRequest{ApplicationID: "missing", ResumeText: "resume"})
	assert.ErrorIs(t, err, ErrApplicationNotFound)

	_, err = svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID})
	assert.ErrorIs(t, err, ErrEmptyResume)

	_, err = svc.Analyze(ctx, AnalyzeRequest{ApplicationID: app.ID, ResumeText: "resume", Profile: "nope"})
	assert.ErrorIs(t, err, prompts.ErrUnknownProfile)

	assert.Zero(t, scorer.Calls())
	history, err := r.apps.ListHistory(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnalysisService_ProfileSelectsModel(t *testing.T) {
	r := newTestRepos(t)
	app := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	var seen ai.ChatRequest
	scorer := &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		seen = req
		return scoringJSON, nil
	}}
	svc := newTestAnalysis(r, scorer, nil)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{ApplicationID: app.ID, ResumeText: "resume", Profile: "detailed"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", seen.Model)
	assert.True(t, seen.JSON)
	assert.Equal(t, "detailed", res.Analysis.Profile)
}
