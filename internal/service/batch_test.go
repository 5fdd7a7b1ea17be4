package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/retry"
	"github.com/timmy/hireflow/internal/storage"
)

type batchFixture struct {
	repos      testRepos
	svc        *BatchService
	backoff    *noSleep
	pacing     *noSleep
	store      *storage.MemoryStorage
	extractor  *fakeExtractor
	scorer     *fakeModel
	progresses [][2]int
}

func newBatchFixture(t *testing.T, scorer *fakeModel) *batchFixture {
	f := &batchFixture{
		repos:     newTestRepos(t),
		backoff:   &noSleep{},
		pacing:    &noSleep{},
		store:     storage.NewMemoryStorage(),
		extractor: &fakeExtractor{text: "Extracted PDF resume: Go developer"},
		scorer:    scorer,
	}
	analysis := newTestAnalysis(f.repos, scorer, nil)
	extraction := NewExtractionService(f.extractor, retry.Policy{MaxAttempts: 1}, testLogger)
	f.svc = NewBatchService(f.repos.apps, f.repos.runs, analysis, extraction, f.store, testLogger, &BatchConfig{
		Retry:          retry.Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Sleep: f.backoff.Sleep},
		InterFileDelay: 1500 * time.Millisecond,
		GroupSize:      2,
		StoragePrefix:  "resumes",
		Sleep:          f.pacing.Sleep,
	})
	return f
}

func (f *batchFixture) options() BatchOptions {
	return BatchOptions{
		JobRole: "Backend Engineer",
		OnProgress: func(done, total int) {
			f.progresses = append(f.progresses, [2]int{done, total})
		},
	}
}

func TestBatchService_ProcessFilesRetriesRateLimitedFile(t *testing.T) {
	ctx := context.Background()
	limited := 0
	scorer := &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		if strings.Contains(req.User, "resume number two") && limited < 2 {
			limited++
			return "", &retry.HTTPError{StatusCode: 429, Message: "Too Many Requests"}
		}
		return scoringJSON, nil
	}}
	f := newBatchFixture(t, scorer)

	files := []BatchFile{
		{Name: "one.txt", MIMEType: "text/plain", Data: []byte("resume number one"), CandidateName: "One"},
		{Name: "two.txt", MIMEType: "text/plain", Data: []byte("resume number two"), CandidateName: "Two"},
		{Name: "three.txt", MIMEType: "text/plain", Data: []byte("resume number three"), CandidateName: "Three"},
	}
	summary, err := f.svc.ProcessFiles(ctx, files, f.options())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.backoff.Delays())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, f.pacing.Delays())

	require.Len(t, summary.Results, 3)
	assert.Equal(t, 3, summary.Succeeded)
	for i, res := range summary.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, FileSucceeded, res.State, res.Error)
		assert.NotEmpty(t, res.ApplicationID)
	}
	assert.Equal(t, 1, summary.Results[0].Attempts)
	assert.Equal(t, 3, summary.Results[1].Attempts)
	assert.Equal(t, 1, summary.Results[2].Attempts)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, f.progresses)

	for _, res := range summary.Results {
		app, err := f.repos.apps.GetByID(ctx, res.ApplicationID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAnalyzed, app.Status)
		assert.Equal(t, "Backend Engineer", app.JobRole)
		ok, err := f.store.Exists(ctx, app.ResumeKey)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	run, err := f.repos.runs.GetByID(ctx, summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchRunCompleted, run.Status)
	assert.Equal(t, 3, run.Succeeded)
}

func TestBatchService_ProcessFilesIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	scorer := &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		switch {
		case strings.Contains(req.User, "always limited"):
			return "", &retry.HTTPError{StatusCode: 429}
		case strings.Contains(req.User, "garbage"):
			return "not json at all", nil
		}
		return scoringJSON, nil
	}}
	f := newBatchFixture(t, scorer)

	files := []BatchFile{
		{Name: "limited.txt", Data: []byte("always limited")},
		{Name: "broken.txt", Data: []byte("garbage")},
		{Name: "scan.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.7")},
	}
	summary, err := f.svc.ProcessFiles(ctx, files, f.options())
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, FileRateLimited, summary.Results[0].State)
	assert.Equal(t, 3, summary.Results[0].Attempts)
	assert.Equal(t, FileFailed, summary.Results[1].State)
	assert.Equal(t, 1, summary.Results[1].Attempts)
	assert.Equal(t, FileSucceeded, summary.Results[2].State)
	assert.Equal(t, ExtractionRemote, summary.Results[2].ExtractionMethod)
	assert.Equal(t, 1, f.extractor.calls)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.RateLimited)

	for _, res := range summary.Results[:2] {
		app, err := f.repos.apps.GetByID(ctx, res.ApplicationID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, app.Status)
	}
}

func TestBatchService_ProcessFilesExtractionFallback(t *testing.T) {
	ctx := context.Background()
	var seen string
	scorer := &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		seen = req.User
		return scoringJSON, nil
	}}
	f := newBatchFixture(t, scorer)
	f.extractor.err = &retry.HTTPError{StatusCode: 500, Message: "boom"}

	summary, err := f.svc.ProcessFiles(ctx, []BatchFile{
		{Name: "cv.docx", MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: []byte{0x50, 0x4b}},
	}, f.options())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, FileSucceeded, summary.Results[0].State)
	assert.Equal(t, ExtractionFallback, summary.Results[0].ExtractionMethod)
	assert.Contains(t, seen, FallbackText("cv.docx"))
}

func TestBatchService_ReanalyzeExtractsAgainAfterDegradedUpload(t *testing.T) {
	ctx := context.Background()
	var seen []string
	scorer := &fakeModel{fn: func(_ int, req ai.ChatRequest) (string, error) {
		seen = append(seen, req.User)
		return scoringJSON, nil
	}}
	f := newBatchFixture(t, scorer)
	f.extractor.err = &retry.HTTPError{StatusCode: 500, Message: "extractor down"}

	summary, err := f.svc.ProcessFiles(ctx, []BatchFile{
		{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")},
	}, f.options())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	require.Equal(t, ExtractionFallback, summary.Results[0].ExtractionMethod)
	appID := summary.Results[0].ApplicationID

	app, err := f.repos.apps.GetByID(ctx, appID)
	require.NoError(t, err)
	assert.Empty(t, app.ResumeText)

	f.extractor.err = nil
	callsBefore := f.extractor.calls
	summary, err = f.svc.Reanalyze(ctx, []string{appID}, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, FileSucceeded, summary.Results[0].State, summary.Results[0].Error)
	assert.Equal(t, ExtractionRemote, summary.Results[0].ExtractionMethod)
	assert.Equal(t, callsBefore+1, f.extractor.calls)
	assert.Contains(t, seen[len(seen)-1], "Extracted PDF resume: Go developer")

	app, err = f.repos.apps.GetByID(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, "Extracted PDF resume: Go developer", app.ResumeText)
}

func TestBatchService_ReanalyzeIgnoresCachedPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newBatchFixture(t, staticModel(scoringJSON))

	summary, err := f.svc.ProcessFiles(ctx, []BatchFile{
		{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")},
	}, f.options())
	require.NoError(t, err)
	appID := summary.Results[0].ApplicationID
	require.NoError(t, f.repos.apps.UpdateResumeText(ctx, appID, FallbackText("cv.pdf")))

	callsBefore := f.extractor.calls
	summary, err = f.svc.Reanalyze(ctx, []string{appID}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, FileSucceeded, summary.Results[0].State, summary.Results[0].Error)
	assert.Equal(t, callsBefore+1, f.extractor.calls)
}

type keyRecordingStore struct {
	*storage.MemoryStorage
	keys []string
}

func (s *keyRecordingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.keys = append(s.keys, key)
	return s.MemoryStorage.Put(ctx, key, data, contentType)
}

func TestBatchService_IntakeFailureRemovesStoredFile(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	store := &keyRecordingStore{MemoryStorage: storage.NewMemoryStorage()}
	extraction := NewExtractionService(&fakeExtractor{text: "unused"}, retry.Policy{MaxAttempts: 1}, testLogger)
	svc := NewBatchService(r.apps, r.runs, newTestAnalysis(r, staticModel(scoringJSON), nil), extraction, store, testLogger, &BatchConfig{
		Retry:         retry.Policy{MaxAttempts: 1},
		StoragePrefix: "resumes",
		Sleep:         (&noSleep{}).Sleep,
	})
	require.NoError(t, r.db.Migrator().DropTable(&domain.Application{}))

	summary, err := svc.ProcessFiles(ctx, []BatchFile{
		{Name: "cv.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4"), CandidateName: "Ada"},
	}, BatchOptions{JobRole: "Backend Engineer"})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, FileFailed, summary.Results[0].State)
	assert.Contains(t, summary.Results[0].Error, "create application")

	require.Len(t, store.keys, 1)
	ok, err := store.Exists(ctx, store.keys[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchService_ProcessFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scorer := staticModel(scoringJSON)
	f := newBatchFixture(t, scorer)
	opts := f.options()
	opts.OnProgress = func(done, _ int) {
		if done == 1 {
			cancel()
		}
	}

	summary, err := f.svc.ProcessFiles(ctx, []BatchFile{
		{Name: "a.txt", Data: []byte("a")},
		{Name: "b.txt", Data: []byte("b")},
		{Name: "c.txt", Data: []byte("c")},
	}, opts)
	require.NoError(t, err)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, FileSucceeded, summary.Results[0].State)
	assert.Equal(t, FileFailed, summary.Results[1].State)
	assert.Equal(t, FileFailed, summary.Results[2].State)
	assert.Equal(t, 1, scorer.Calls())
}

func TestBatchService_CancelDuringBackoffIsNotRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newTestRepos(t)
	scorer := &fakeModel{fn: func(int, ai.ChatRequest) (string, error) {
		return "", &retry.HTTPError{StatusCode: 429, Message: "Too Many Requests"}
	}}
	extraction := NewExtractionService(&fakeExtractor{text: "unused"}, retry.Policy{MaxAttempts: 1}, testLogger)
	svc := NewBatchService(r.apps, r.runs, newTestAnalysis(r, scorer, nil), extraction, nil, testLogger, &BatchConfig{
		Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}},
		Sleep: (&noSleep{}).Sleep,
	})

	summary, err := svc.ProcessFiles(ctx, []BatchFile{
		{Name: "a.txt", MIMEType: "text/plain", Data: []byte("resume a")},
	}, BatchOptions{JobRole: "Backend Engineer"})
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, FileFailed, summary.Results[0].State)
	assert.Equal(t, 1, summary.Results[0].Attempts)
	assert.Zero(t, summary.RateLimited)
	assert.Equal(t, 1, scorer.Calls())
}

func TestBatchService_ReanalyzeInGroups(t *testing.T) {
	ctx := context.Background()
	scorer := staticModel(scoringJSON)
	f := newBatchFixture(t, scorer)

	var ids []string
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		app := seedApp(t, f.repos, "Backend Engineer", name, strings.ToLower(name)+"@example.com")
		require.NoError(t, f.repos.apps.UpdateResumeText(ctx, app.ID, "cached resume of "+name))
		ids = append(ids, app.ID)
	}
	stored := seedApp(t, f.repos, "Backend Engineer", "Stored", "stored@example.com")
	key := storage.ResumeKey("resumes", stored.ID, "stored.pdf")
	require.NoError(t, f.store.Put(ctx, key, []byte("%PDF"), "application/pdf"))
	require.NoError(t, f.repos.db.WithContext(ctx).Model(&domain.Application{}).
		Where("id = ?", stored.ID).
		Updates(map[string]interface{}{"resume_key": key, "resume_name": "stored.pdf", "resume_mime": "application/pdf"}).Error)
	ids = append(ids, stored.ID, "missing-app")

	summary, err := f.svc.Reanalyze(ctx, ids, f.options())
	require.NoError(t, err)

	require.Len(t, summary.Results, 7)
	for i, res := range summary.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, ids[i], res.ApplicationID)
	}
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, FileFailed, summary.Results[6].State)
	assert.Equal(t, ExtractionRemote, summary.Results[5].ExtractionMethod)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, 6, scorer.Calls())
	assert.Equal(t, [][2]int{{2, 7}, {4, 7}, {6, 7}, {7, 7}}, f.progresses)
	assert.Empty(t, f.pacing.Delays())
}

func TestBatchService_ReanalyzeStatus(t *testing.T) {
	ctx := context.Background()
	f := newBatchFixture(t, staticModel(scoringJSON))

	pending := seedApp(t, f.repos, "Backend Engineer", "Pat", "pat@example.com")
	require.NoError(t, f.repos.apps.UpdateResumeText(ctx, pending.ID, "cached"))
	reviewed := seedApp(t, f.repos, "Backend Engineer", "Rey", "rey@example.com")
	_, err := f.repos.apps.TransitionStatus(ctx, reviewed.ID, domain.StatusReviewed, "seed", "")
	require.NoError(t, err)

	summary, err := f.svc.ReanalyzeStatus(ctx, domain.StatusPending, 0, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, pending.ID, summary.Results[0].ApplicationID)
	assert.Equal(t, FileSucceeded, summary.Results[0].State)

	_, err = f.svc.ReanalyzeStatus(ctx, "archived", 0, BatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
