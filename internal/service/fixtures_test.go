package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/ai"
	"github.com/timmy/hireflow/internal/delivery"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/retry"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return db
}

type testRepos struct {
	db            *gorm.DB
	apps          *repository.ApplicationRepository
	analyses      *repository.AnalysisRepository
	matches       *repository.MatchRepository
	notifications *repository.NotificationRepository
	settings      *repository.SettingsRepository
	leases        *repository.LeaseRepository
	runs          *repository.BatchRunRepository
}

func newTestRepos(t *testing.T) testRepos {
	db := newTestDB(t)
	return testRepos{
		db:            db,
		apps:          repository.NewApplicationRepository(db),
		analyses:      repository.NewAnalysisRepository(db),
		matches:       repository.NewMatchRepository(db),
		notifications: repository.NewNotificationRepository(db),
		settings:      repository.NewSettingsRepository(db),
		leases:        repository.NewLeaseRepository(db),
		runs:          repository.NewBatchRunRepository(db),
	}
}

func seedApp(t *testing.T, r testRepos, role, name, email string) *domain.Application {
	t.Helper()
	app := &domain.Application{JobRole: role}
	require.NoError(t, r.apps.CreateWithCandidate(context.Background(),
		&domain.Candidate{FullName: name, Email: email, UserID: "user-" + strings.ToLower(name)}, app))
	return app
}

var testLogger = logger.NewDiscard()

// noSleep is a retry.SleepFunc that records the requested delays.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *noSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// fakeModel is an ai.ChatModel driven by a function.
type fakeModel struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req ai.ChatRequest) (string, error)
}

func (m *fakeModel) Complete(_ context.Context, req ai.ChatRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()
	return m.fn(call, req)
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func staticModel(out string) *fakeModel {
	return &fakeModel{fn: func(int, ai.ChatRequest) (string, error) { return out, nil }}
}

const scoringJSON = `{
  "skills_score": 82,
  "experience_score": 75,
  "education_score": 70,
  "overall_score": 78,
  "skills": [
    {"name": "Python", "proficiency": "advanced"},
    {"name": "Backend Development", "proficiency": "advanced"}
  ],
  "recommendations": "Proceed to a technical interview.",
  "summary": "Backend engineer with five years of Python."
}`

type fakeExtractor struct {
	calls int
	text  string
	err   error
}

func (e *fakeExtractor) ExtractText(context.Context, ai.Document) (string, error) {
	e.calls++
	return e.text, e.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []delivery.Email
	fail func(delivery.Email) error
}

func (m *fakeMailer) Send(_ context.Context, e delivery.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(e); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *fakeMailer) Sent() []delivery.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery.Email(nil), m.sent...)
}

type fakePusher struct {
	mu       sync.Mutex
	attempts []delivery.PushMessage
	fail     map[string]bool
}

func (p *fakePusher) Push(_ context.Context, msg delivery.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, msg)
	if p.fail[msg.Endpoint] {
		return &retry.HTTPError{StatusCode: 410, Message: "subscription expired"}
	}
	return nil
}

func newTestNotifier(r testRepos, mailer delivery.Mailer, pusher delivery.Pusher) *NotificationService {
	return NewNotificationService(r.notifications, r.apps, mailer, pusher, testLogger, &NotificationConfig{
		Enabled:    true,
		MaxRetries: 3,
		MailPolicy: retry.Policy{MaxAttempts: 1},
	})
}

func countNotifications(t *testing.T, r testRepos, typ domain.NotificationType) int {
	t.Helper()
	_, total, err := r.notifications.List(context.Background(), repository.NotificationFilter{Type: typ})
	require.NoError(t, err)
	return int(total)
}

func repositoryFilter(typ domain.NotificationType, status domain.NotificationStatus) repository.NotificationFilter {
	return repository.NotificationFilter{Type: typ, Status: status}
}
