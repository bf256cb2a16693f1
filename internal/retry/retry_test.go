package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyDelay(t *testing.T) {
	p := Policy{
		MaxAttempts:        5,
		InitialInterval:    time.Second,
		BackoffCoefficient: 2,
		MaxInterval:        5 * time.Second,
	}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4), "capped at the maximum interval")
	assert.Equal(t, 5*time.Second, p.Delay(60))

	flat := Policy{InitialInterval: time.Second, BackoffCoefficient: 0.5}
	assert.Equal(t, time.Second, flat.Delay(3), "coefficients below 1 don't shrink the delay")
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.InDelta(t, 2.0, p.BackoffCoefficient, 0)
	assert.Equal(t, 10*time.Second, p.MaxInterval)
}

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, BackoffCoefficient: 2, MaxInterval: 4 * time.Millisecond}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoBoundsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), fastPolicy(4), func(context.Context, int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)

	calls = 0
	err = Do(context.Background(), Policy{}, func(context.Context, int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "a zero policy still makes one attempt")
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	bad := errors.New("template: missing key")
	err := Do(context.Background(), fastPolicy(5), func(context.Context, int) error {
		calls++
		return Permanent(bad)
	})
	require.ErrorIs(t, err, bad)
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Hour, BackoffCoefficient: 2}, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("stream reset")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), fastPolicy(5), func(context.Context, int) error {
		calls++
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation returned by the operation is never retried")
}

func TestDoCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastPolicy(3), func(context.Context, int) error {
		t.Fatal("must not be called")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.True(t, IsPermanent(context.DeadlineExceeded))
	assert.False(t, IsPermanent(errors.New("x")))
}

func TestBreakerTrips(t *testing.T) {
	cb := NewBreaker(BreakerSettings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1})
	fail := func() (any, error) { return nil, errors.New("503") }

	_, err := cb.Execute(fail)
	require.Error(t, err)
	_, err = cb.Execute(fail)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err = cb.Execute(func() (any, error) { return nil, nil })
	assert.True(t, IsOpen(err))
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb := NewBreaker(BreakerSettings{Name: "test", ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	_, err := cb.Execute(func() (any, error) { return nil, context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
