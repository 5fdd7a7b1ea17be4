package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "http 429", err: &HTTPError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "wrapped 429", err: fmt.Errorf("score: %w", &HTTPError{StatusCode: 429, Message: "slow down"}), want: true},
		{name: "http 500", err: &HTTPError{StatusCode: http.StatusInternalServerError, Message: "boom"}, want: false},
		{name: "sentinel", err: fmt.Errorf("scorer: %w", ErrRateLimited), want: true},
		{name: "message marker", err: errors.New("Rate limit reached for requests"), want: true},
		{name: "quota marker", err: errors.New("RESOURCE_EXHAUSTED: quota"), want: true},
		{name: "status marker", err: errors.New("upstream returned status 429"), want: true},
		{name: "digits in id", err: errors.New("application 7f429a1c has not been analyzed"), want: false},
		{name: "plain failure", err: errors.New("invalid api key"), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "canceled after 429", err: errors.Join(context.Canceled, &HTTPError{StatusCode: 429}), want: false},
		{name: "deadline after marker", err: fmt.Errorf("score: %w", errors.Join(context.DeadlineExceeded, errors.New("too many requests"))), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDoRetriesRateLimitWithDoublingDelay(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Sleep: sleeps.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return &HTTPError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeps.delays)
}

func TestDoDoesNotRetryNonRetryable(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: sleeps.sleep}

	fatal := errors.New("malformed request")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps.delays)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	sleeps := &recordedSleeps{}
	p := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Sleep: sleeps.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &HTTPError{StatusCode: 429, Message: fmt.Sprintf("attempt %d", calls)}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeps.delays, 2)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.True(t, IsRetryable(err))
}

func TestDoStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return ErrRateLimited
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestDoValueAndOnRetry(t *testing.T) {
	var attempts []int
	p := Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		OnRetry:     func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	}

	calls := 0
	v, err := DoValue(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", ErrRateLimited
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, []int{1}, attempts)
}

func TestDelay(t *testing.T) {
	p := New(4, 1500*time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 6*time.Second, p.Delay(3))
}
