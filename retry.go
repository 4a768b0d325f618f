package s8e

import (
	"context"
	"fmt"
	"sync"
)

// retryConfig holds the optional configuration for retry behavior.
type retryConfig struct {
	clock   Clock
	hooks   *Hooks
	retryIf func(error) bool // nil means use default Transient/Permanent check
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig)

// RetryClock sets the clock used for elapsed-time measurement and backoff
// sleeps. Defaults to [RealClock].
func RetryClock(c Clock) RetryOption {
	return func(cfg *retryConfig) {
		cfg.clock = c
	}
}

// RetryHooks sets the lifecycle hooks emitted on each retry attempt.
func RetryHooks(h *Hooks) RetryOption {
	return func(cfg *retryConfig) {
		cfg.hooks = h
	}
}

// RetryIf sets a custom predicate that determines whether an error is
// retryable, in addition to the Transient/Permanent classification.
func RetryIf(fn func(error) bool) RetryOption {
	return func(cfg *retryConfig) {
		cfg.retryIf = fn
	}
}

// Pattern: Retry with Schedule — masks transient failures by re-invoking the
// operation per a pure Schedule; respects Permanent error classification to
// stop early.

// Retry is a [Policy] that re-invokes a failing operation according to a
// [Schedule]. Each call carries its own attempt counter and elapsed-time
// origin; the Retry value itself is stateless across calls and safe for
// concurrent use.
type Retry[T any] struct {
	schedule Schedule
	clock    Clock
	hooks    *Hooks
	retryIf  func(error) bool

	releaseOnce sync.Once
	released    chan struct{}
}

// NewRetry creates a retry policy driven by schedule. Returns an error if
// schedule is nil.
func NewRetry[T any](schedule Schedule, opts ...RetryOption) (*Retry[T], error) {
	if schedule == nil {
		return nil, fmt.Errorf("s8e: retry: %w", errNilSchedule)
	}

	cfg := retryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.clock == nil {
		cfg.clock = RealClock{}
	}

	if cfg.hooks == nil {
		cfg.hooks = &Hooks{}
	}

	return &Retry[T]{
		schedule: schedule,
		clock:    cfg.clock,
		hooks:    cfg.hooks,
		retryIf:  cfg.retryIf,
		released: make(chan struct{}),
	}, nil
}

var errNilSchedule = policyError("nil schedule")

// Apply runs op, re-invoking it on failure until it succeeds, the schedule
// signals stop, the context is cancelled, or the policy is released. The
// caller observes a single suspended call that eventually resolves; the
// attempt loop is invisible from outside.
func (r *Retry[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	select {
	case <-r.released:
		return zero, ErrPolicyReleased
	default:
	}

	start := r.clock.Now()

	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)

		// On success: return result immediately.
		if err == nil {
			return result, nil
		}

		lastErr = err

		// If error is Permanent: stop immediately.
		if IsPermanent(err) {
			return zero, err
		}

		// If retryIf predicate is set and returns false: stop.
		if r.retryIf != nil && !r.retryIf(err) {
			return zero, err
		}

		// Consult the schedule with the attempt that just failed and the
		// elapsed time since the first attempt.
		delay, retry := r.schedule.Next(attempt, r.clock.Since(start))
		if !retry {
			break
		}

		// Emit OnRetry hook with 1-indexed attempt number.
		r.hooks.emitRetry(attempt+1, err)

		// Sleep using Clock.NewTimer, respecting cancellation and release.
		timer := r.clock.NewTimer(delay)
		select {
		case <-timer.C():
			// Timer fired, proceed to next attempt.
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-r.released:
			timer.Stop()
			return zero, ErrPolicyReleased
		}
	}

	// Schedule signalled stop: wrap last error with ErrRetriesExhausted.
	return zero, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// Release marks the policy released and wakes calls suspended in a backoff
// delay; they return [ErrPolicyReleased]. Idempotent.
func (r *Retry[T]) Release() {
	r.releaseOnce.Do(func() {
		close(r.released)
	})
}
