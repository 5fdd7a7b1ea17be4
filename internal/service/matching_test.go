package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/retry"
)

type matchingFixture struct {
	repos   testRepos
	mailer  *fakeMailer
	pusher  *fakePusher
	pacing  *noSleep
	matcher *fakeModel
	req     *domain.JobRequirement
}

func newMatchingFixture(t *testing.T, scores map[string]int) *matchingFixture {
	f := &matchingFixture{
		repos:  newTestRepos(t),
		mailer: &fakeMailer{},
		pusher: &fakePusher{},
		pacing: &noSleep{},
	}
	f.matcher = &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		for marker, score := range scores {
			if strings.Contains(req.User, marker) {
				return fmt.Sprintf(`{"match_score": %d, "skills_match": %d, "experience_match": 70, "education_match": 60,
					"matched_skills": ["Python"], "missing_skills": ["Kafka"], "strengths": ["API design"],
					"gaps": ["streaming"], "recommendation": ""}`, score, score), nil
			}
		}
		return "", fmt.Errorf("unexpected profile")
	}}
	f.req = &domain.JobRequirement{
		Role:               "Backend Engineer",
		Description:        "Build APIs",
		MinExperienceYears: 3,
		RequiredSkills:     domain.StringArray{"Python", "SQL"},
		EducationLevel:     "bachelor",
	}
	require.NoError(t, f.repos.matches.CreateRequirement(context.Background(), f.req))
	return f
}

// seedAnalyzed creates an analyzed application whose summary contains marker.
func (f *matchingFixture) seedAnalyzed(t *testing.T, name, marker string) *domain.Application {
	ctx := context.Background()
	app := seedApp(t, f.repos, "Backend Engineer", name, strings.ToLower(name)+"@example.com")
	require.NoError(t, f.repos.analyses.SaveResult(ctx, &domain.AIAnalysis{
		ApplicationID: app.ID,
		SkillsScore:   80,
		OverallScore:  80,
		Summary:       "profile " + marker,
		AnalyzedAt:    time.Now(),
	}, []domain.Skill{{Name: "Python", Proficiency: "advanced"}}))
	_, err := f.repos.apps.TransitionStatus(ctx, app.ID, domain.StatusAnalyzed, PipelineActor, "")
	require.NoError(t, err)
	return app
}

func (f *matchingFixture) service(settings RunSettings) *MatchingService {
	return NewMatchingService(f.repos.apps, f.repos.analyses, f.repos.matches, f.matcher,
		StaticSettings(settings), newTestNotifier(f.repos, f.mailer, f.pusher), testLogger,
		&MatchingConfig{
			Retry:          retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: (&noSleep{}).Sleep},
			InterCallDelay: 500 * time.Millisecond,
			Sleep:          f.pacing.Sleep,
		})
}

func TestMatchingService_ThresholdSelectsHighScorers(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture(t, map[string]int{"alpha-marker": 85, "beta-marker": 60})
	alice := f.seedAnalyzed(t, "Alice", "alpha-marker")
	f.seedAnalyzed(t, "Bob", "beta-marker")

	res, err := f.service(RunSettings{Threshold: 80}).Match(ctx, f.req.ID, nil)
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	assert.Empty(t, res.Failures)
	require.Len(t, res.HighScoreCandidates, 1)
	assert.Equal(t, alice.ID, res.HighScoreCandidates[0].ApplicationID)
	assert.Equal(t, 85, res.HighScoreCandidates[0].MatchScore)
	assert.Equal(t, 1, res.CandidateNotificationsSent)
	assert.Zero(t, res.RecruiterNotificationsSent)
	assert.Equal(t, 80, res.Threshold)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, "85%")
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.pacing.Delays())

	rows, err := f.repos.matches.ListByRequirement(ctx, f.req.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		detail, err := row.DecodeDetail()
		require.NoError(t, err)
		assert.Equal(t, []string{"Python"}, detail.MatchedSkills)
		if row.ApplicationID == alice.ID {
			assert.Equal(t, domain.RecommendationStrong, detail.Recommendation)
		} else {
			assert.Equal(t, domain.RecommendationModerate, detail.Recommendation)
		}
	}
}

func TestMatchingService_RerunOverwritesPair(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture(t, map[string]int{"alpha-marker": 85})
	alice := f.seedAnalyzed(t, "Alice", "alpha-marker")
	svc := f.service(RunSettings{Threshold: 101})

	for i := 0; i < 3; i++ {
		_, err := svc.Match(ctx, f.req.ID, []string{alice.ID})
		require.NoError(t, err)
	}

	count, err := f.repos.matches.CountPair(ctx, alice.ID, f.req.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Empty(t, f.mailer.Sent())
}

func TestMatchingService_RecruiterDigestAndPush(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture(t, map[string]int{"alpha-marker": 92, "gamma-marker": 88})
	f.seedAnalyzed(t, "Alice", "alpha-marker")
	f.seedAnalyzed(t, "Carol", "gamma-marker")

	rec := &domain.Recruiter{UserID: "recruiter-1", FullName: "Rita", Email: "rita@example.com", Active: true}
	require.NoError(t, f.repos.notifications.CreateRecruiter(ctx, rec))
	for _, endpoint := range []string{"https://push.example/dead", "https://push.example/live"} {
		require.NoError(t, f.repos.notifications.CreateSubscription(ctx, &domain.PushSubscription{UserID: "recruiter-1", Endpoint: endpoint}))
	}
	f.pusher.fail = map[string]bool{"https://push.example/dead": true}

	res, err := f.service(RunSettings{Threshold: 80, RecruiterNotifications: true}).Match(ctx, f.req.ID, nil)
	require.NoError(t, err)

	assert.Len(t, res.HighScoreCandidates, 2)
	assert.Equal(t, 2, res.CandidateNotificationsSent)
	assert.Equal(t, 1, res.RecruiterNotificationsSent)

	var digest string
	for _, e := range f.mailer.Sent() {
		if e.To == "rita@example.com" {
			digest = e.HTML
		}
	}
	assert.Contains(t, digest, "Hi Rita,")
	assert.Contains(t, digest, "<li><strong>Alice</strong>")
	assert.Contains(t, digest, "<li><strong>Carol</strong>")

	assert.Len(t, f.pusher.attempts, 2)
	assert.Equal(t, 2, countNotifications(t, f.repos, domain.NotificationPush))
	failed, _, err := f.repos.notifications.List(ctx, repositoryFilter(domain.NotificationPush, domain.NotificationFailed))
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestMatchingService_IsolatesCandidateFailures(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture(t, map[string]int{"alpha-marker": 70})
	alice := f.seedAnalyzed(t, "Alice", "alpha-marker")
	unanalyzed := seedApp(t, f.repos, "Backend Engineer", "Dan", "dan@example.com")

	res, err := f.service(RunSettings{Threshold: 80}).Match(ctx, f.req.ID, []string{unanalyzed.ID, alice.ID})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, alice.ID, res.Matches[0].ApplicationID)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, unanalyzed.ID, res.Failures[0].ApplicationID)
	assert.False(t, res.Failures[0].RateLimited)
}

func TestMatchingService_ReportsUnknownApplications(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture(t, map[string]int{"alpha-marker": 90})
	alice := f.seedAnalyzed(t, "Alice", "alpha-marker")

	res, err := f.service(RunSettings{Threshold: 80}).Match(ctx, f.req.ID, []string{"ghost-1", alice.ID, "ghost-2", "ghost-1"})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, alice.ID, res.Matches[0].ApplicationID)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "ghost-1", res.Failures[0].ApplicationID)
	assert.Equal(t, "ghost-2", res.Failures[1].ApplicationID)
	for _, failure := range res.Failures {
		assert.Equal(t, ErrApplicationNotFound.Error(), failure.Error)
		assert.False(t, failure.RateLimited)
	}
	assert.Equal(t, 1, f.matcher.Calls())
}

func TestMatchingService_UnknownRequirement(t *testing.T) {
	f := newMatchingFixture(t, nil)
	_, err := f.service(RunSettings{Threshold: 80}).Match(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrRequirementNotFound)
	assert.Zero(t, f.matcher.Calls())
}
