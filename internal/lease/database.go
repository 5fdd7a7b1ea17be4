package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/hireflow/internal/repository"
)

// DatabaseLocker keeps leases in the analysis_leases table.
type DatabaseLocker struct {
	repo *repository.LeaseRepository
	now  func() time.Time
}

// NewDatabaseLocker creates a DatabaseLocker backed by repo.
func NewDatabaseLocker(repo *repository.LeaseRepository) *DatabaseLocker {
	return &DatabaseLocker{repo: repo, now: time.Now}
}

// Acquire implements Locker.
func (l *DatabaseLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := newToken()
	ok, err := l.repo.TryAcquire(ctx, key, token, ttl, l.now())
	if err != nil {
		return "", fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return "", ErrNotHeld
	}
	return token, nil
}

// Release implements Locker.
func (l *DatabaseLocker) Release(ctx context.Context, key, token string) error {
	if err := l.repo.Release(ctx, key, token); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
