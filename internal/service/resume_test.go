package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/storage"
)

func TestResumeService_ResumeURL(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos(t)
	store := storage.NewMemoryStorage()
	svc := NewResumeService(r.apps, store, 10*time.Minute, testLogger)

	stored := &domain.Application{JobRole: "Backend Engineer", ResumeName: "cv.pdf", ResumeKey: "resumes/app-stored/cv.pdf"}
	require.NoError(t, r.apps.CreateWithCandidate(ctx, &domain.Candidate{FullName: "Ada", Email: "ada@example.com"}, stored))
	require.NoError(t, store.Put(ctx, stored.ResumeKey, []byte("%PDF-1.4"), "application/pdf"))

	before := time.Now()
	link, err := svc.ResumeURL(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "memory://resumes/app-stored/cv.pdf", link.URL)
	assert.Equal(t, "cv.pdf", link.FileName)
	assert.WithinDuration(t, before.Add(10*time.Minute), link.ExpiresAt, 5*time.Second)

	require.NoError(t, store.Delete(ctx, stored.ResumeKey))
	_, err = svc.ResumeURL(ctx, stored.ID)
	assert.ErrorIs(t, err, ErrResumeNotStored)

	unstored := seedApp(t, r, "Backend Engineer", "Grace", "grace@example.com")
	_, err = svc.ResumeURL(ctx, unstored.ID)
	assert.ErrorIs(t, err, ErrResumeNotStored)

	_, err = svc.ResumeURL(ctx, "missing")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestResumeService_StorageDisabled(t *testing.T) {
	r := newTestRepos(t)
	app := &domain.Application{JobRole: "Backend Engineer", ResumeKey: "resumes/x/cv.pdf"}
	require.NoError(t, r.apps.CreateWithCandidate(context.Background(), &domain.Candidate{FullName: "Ada"}, app))

	_, err := NewResumeService(r.apps, nil, 0, testLogger).ResumeURL(context.Background(), app.ID)
	assert.ErrorIs(t, err, ErrResumeNotStored)
}
