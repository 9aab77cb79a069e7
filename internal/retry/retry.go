// Package retry runs an operation a bounded number of times with capped
// exponential backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy describes how often and how slowly an operation is retried.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // multiplied by 2^attempt
	MaxDelay    time.Duration // cap applied after jitter
	Jitter      time.Duration // upper bound of the uniform random addition
}

// DefaultPolicy is three attempts, waiting min(10s, 2^n s + U(0,1s)) after
// failed attempt n.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      time.Second,
}

// Delay returns the wait after failed attempt n (n >= 1).
func (p Policy) Delay(attempt int, rnd func() float64) time.Duration {
	d := p.BaseDelay * time.Duration(int64(1)<<min(attempt, 30))
	if p.Jitter > 0 && rnd != nil {
		d += time.Duration(rnd() * float64(p.Jitter))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy Policy
	sleep  Sleeper
	rnd    func() float64
	logger *slog.Logger
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option { return func(r *Retrier) { r.sleep = s } }

// WithRand replaces the jitter source; it must return values in [0, 1).
func WithRand(rnd func() float64) Option { return func(r *Retrier) { r.rnd = rnd } }

// New returns a Retrier. A policy with MaxAttempts < 1 runs once.
func New(policy Policy, logger *slog.Logger, opts ...Option) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retrier{policy: policy, sleep: Sleep, rnd: rand.Float64, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Policy returns the policy in effect.
func (r *Retrier) Policy() Policy { return r.policy }

// AttemptsError is returned when every attempt failed.
type AttemptsError struct {
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error { return e.Err }

// Do calls op until it succeeds or the attempts run out. op receives the
// 1-based attempt number. Cancellation of ctx stops the loop and returns the
// context error wrapped in an AttemptsError.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		r.logger.Warn("attempt failed", "attempt", attempt, "max_attempts", r.policy.MaxAttempts, "error", lastErr)
		if ctx.Err() != nil {
			return &AttemptsError{Attempts: attempt, Err: ctx.Err()}
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Delay(attempt, r.rnd)
		r.logger.Info("retry backoff wait", "attempt", attempt, "retry_in", delay.Round(time.Millisecond))
		if err := r.sleep(ctx, delay); err != nil {
			return &AttemptsError{Attempts: attempt, Err: err}
		}
	}
	return &AttemptsError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}
