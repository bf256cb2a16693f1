// Package retry runs an operation again with exponentially growing pauses
// until it succeeds, the attempts run out or the context is done.
//
// The policy fields mirror a Temporal activity retry policy so the same
// settings drive local runs and durable workflow activities.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/casualjim/bookstart/pkg/slogx"
)

// Policy controls how often and how far apart attempts are made.
type Policy struct {
	MaxAttempts        int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	InitialInterval    time.Duration `yaml:"initial_interval" json:"initial_interval"`
	BackoffCoefficient float64       `yaml:"backoff_coefficient" json:"backoff_coefficient" validate:"gte=1"`
	MaxInterval        time.Duration `yaml:"max_interval" json:"max_interval"`
}

// DefaultPolicy is 3 attempts starting 1s apart, doubling up to 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaxInterval:        10 * time.Second,
	}
}

// Delay is the pause after the given failed attempt (1 based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialInterval <= 0 {
		return 0
	}
	coeff := p.BackoffCoefficient
	if coeff < 1 {
		coeff = 1
	}
	d := float64(p.InitialInterval) * math.Pow(coeff, float64(attempt-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent or is a context
// cancellation.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Do calls fn until it returns nil, a permanent error or the policy is
// exhausted. The error of the last attempt is returned unwrapped from any
// Permanent marker.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := policy.attempts()
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				return cerr
			}
			return errors.Join(err, cerr)
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return unwrapPermanent(err)
		}
		if attempt == maxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		slog.WarnContext(ctx, "attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slogx.Error(err),
		)
		if !sleep(ctx, delay) {
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
