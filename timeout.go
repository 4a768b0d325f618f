package s8e

import (
	"context"
	"time"
)

// Pattern: Timeout — bounds a call with a context deadline, returning
// ErrTimeout if the operation does not complete in time. Distinguishes
// between timeout-caused cancellation and parent context cancellation.

// Timeout is a [Policy] that cancels slow operations after a fixed
// duration. It is stateless across calls and safe for concurrent use.
type Timeout[T any] struct {
	hooks *Hooks
	d     time.Duration
}

// NewTimeout creates a timeout policy that allows each operation at most d
// to complete.
func NewTimeout[T any](d time.Duration, hooks *Hooks) *Timeout[T] {
	if hooks == nil {
		hooks = &Hooks{}
	}

	return &Timeout[T]{d: d, hooks: hooks}
}

// Apply runs op under a derived deadline. If the deadline expires first,
// the derived context is cancelled and ErrTimeout is returned; parent
// cancellation surfaces as the parent's own error.
func (t *Timeout[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	// If the parent context is already done, return its error immediately.
	if ctx.Err() != nil {
		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	// Run op in a goroutine and collect its result via channel.
	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := op(timeoutCtx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timeoutCtx.Done():
		// Distinguish between timeout and parent cancellation.
		if ctx.Err() != nil {
			return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		t.hooks.emitTimeout()

		return zero, ErrTimeout
	}
}

// Release is a no-op: a timeout holds no resources beyond per-call timers,
// which are cancelled when each call returns.
func (t *Timeout[T]) Release() {}
