package s8e

import (
	"context"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

type rateLimitConfig struct {
	clock    Clock
	hooks    *Hooks
	blocking bool
}

// RateLimitOption configures rate limiter behavior.
type RateLimitOption func(*rateLimitConfig)

// RateLimitBlocking makes the rate limiter wait for a token instead of
// rejecting.
func RateLimitBlocking() RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.blocking = true
	}
}

// LimiterClock sets the clock used for refill timing. Defaults to
// [RealClock].
func LimiterClock(c Clock) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.clock = c
	}
}

// LimiterHooks sets the lifecycle hooks emitted on rejection.
func LimiterHooks(h *Hooks) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.hooks = h
	}
}

// ---------------------------------------------------------------------------
// RateLimiter
// ---------------------------------------------------------------------------

// fixedPointScale converts floating-point tokens to fixed-point integers.
// Using 1e9 gives nanosecond-level precision for token fractions.
const fixedPointScale int64 = 1_000_000_000

// RateLimiter is a [Policy] that controls the rate of calls using a token
// bucket.
//
// Pattern: Rate Limiter — token bucket controls call throughput; lock-free
// via atomic CAS for token acquisition and refill.
type RateLimiter[T any] struct {
	rate     float64 // tokens per second
	capacity int64   // max tokens in fixed-point (rate * fixedPointScale)
	clock    Clock
	hooks    *Hooks
	cfg      rateLimitConfig

	tokens   atomic.Int64 // current tokens in fixed-point
	lastNano atomic.Int64 // last refill timestamp (unix nano)
}

// NewRateLimiter creates a rate limiter that allows rate tokens per second.
func NewRateLimiter[T any](rate float64, opts ...RateLimitOption) *RateLimiter[T] {
	var cfg rateLimitConfig
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.clock == nil {
		cfg.clock = RealClock{}
	}

	if cfg.hooks == nil {
		cfg.hooks = &Hooks{}
	}

	capacity := int64(rate * float64(fixedPointScale))

	rl := &RateLimiter[T]{
		rate:     rate,
		capacity: capacity,
		clock:    cfg.clock,
		hooks:    cfg.hooks,
		cfg:      cfg,
	}

	// Start with a full bucket.
	rl.tokens.Store(capacity)
	rl.lastNano.Store(rl.clock.Now().UnixNano())

	return rl
}

// Apply runs op if a token is available. In reject mode (default) it
// returns [ErrRateLimited] when the bucket is empty; in blocking mode it
// waits for a token, respecting context cancellation.
func (rl *RateLimiter[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	if err := rl.allow(ctx); err != nil {
		return zero, err
	}

	return op(ctx)
}

// Release is a no-op: the bucket is a pair of atomics with nothing to tear
// down.
func (rl *RateLimiter[T]) Release() {}

// refill adds tokens based on elapsed time since the last refill. It uses a
// CAS loop to atomically update both the token count and the last-refill
// timestamp, ensuring lock-free correctness under concurrent access.
func (rl *RateLimiter[T]) refill() {
	for {
		oldLastNano := rl.lastNano.Load()
		nowNano := rl.clock.Now().UnixNano()
		elapsedNano := nowNano - oldLastNano

		if elapsedNano <= 0 {
			return
		}

		// Try to claim this time window by updating lastNano.
		if !rl.lastNano.CompareAndSwap(oldLastNano, nowNano) {
			// Another goroutine refilled; retry to see if there's more
			// elapsed time.
			continue
		}

		// Elapsed nanos * rate is already in fixed-point representation
		// (scale = 1e9 = nanos per second).
		addTokens := int64(float64(elapsedNano) * rl.rate)

		if addTokens <= 0 {
			return
		}

		// Add tokens atomically, capping at capacity.
		for {
			oldTokens := rl.tokens.Load()

			newTokens := oldTokens + addTokens
			if newTokens > rl.capacity {
				newTokens = rl.capacity
			}

			if rl.tokens.CompareAndSwap(oldTokens, newTokens) {
				return
			}
		}
	}
}

// tryAcquire attempts to decrement one token using a CAS loop.
func (rl *RateLimiter[T]) tryAcquire() bool {
	for {
		current := rl.tokens.Load()
		if current < fixedPointScale {
			return false
		}

		if rl.tokens.CompareAndSwap(current, current-fixedPointScale) {
			return true
		}
	}
}

// allow acquires a token per the configured mode.
func (rl *RateLimiter[T]) allow(ctx context.Context) error {
	// Refill based on elapsed time, then try to acquire.
	rl.refill()

	if rl.tryAcquire() {
		return nil
	}

	// No token available.
	if !rl.cfg.blocking {
		rl.hooks.emitRateLimited()
		return ErrRateLimited
	}

	// Blocking mode: wait for a token, respecting context cancellation.
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		timer := rl.clock.NewTimer(time.Millisecond)
		select {
		case <-timer.C():
			rl.refill()

			if rl.tryAcquire() {
				return nil
			}
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Saturated reports whether the bucket is empty (no tokens available).
func (rl *RateLimiter[T]) Saturated() bool {
	rl.refill()
	return rl.tokens.Load() < fixedPointScale
}
