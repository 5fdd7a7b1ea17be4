// Package lease provides short-lived exclusive claims on a key, used to keep
// two analysis runs of the same application from overlapping.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotHeld is returned by Acquire when another holder owns an unexpired lease.
var ErrNotHeld = errors.New("lease held by another holder")

// Locker acquires and releases leases. Implementations must make Acquire a
// single atomic check-and-set.
type Locker interface {
	// Acquire claims key for ttl. It returns a holder token on success and
	// ErrNotHeld if the key is currently leased by someone else.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Release frees key if token still owns it. Releasing a lost lease is a no-op.
	Release(ctx context.Context, key, token string) error
}

func newToken() string {
	return uuid.New().String()
}

// Noop grants every lease. It is used when leasing is disabled.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string, time.Duration) (string, error) {
	return newToken(), nil
}

// Release does nothing.
func (Noop) Release(context.Context, string, string) error {
	return nil
}
