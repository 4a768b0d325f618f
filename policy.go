package s8e

import "context"

// ---------------------------------------------------------------------------
// Policy[T] — the central contract
// ---------------------------------------------------------------------------

// Operation is the computation a policy wraps: an arbitrary context-aware
// function producing a value or an error. Policies never inspect the value;
// they only observe success, failure, and cancellation.
type Operation[T any] func(ctx context.Context) (T, error)

// Policy wraps an [Operation] with an admission or recovery rule. Apply
// either runs the operation (possibly more than once, possibly after a
// delay) or rejects it with a [PolicyError] sentinel; the operation's own
// failures pass through so callers can always tell "my call failed" from
// "the policy refused my call" via [IsRejection].
//
// Release tears the instance down, waking any suspended callers with
// [ErrPolicyReleased] and freeing held resources. It is idempotent and
// must not be called while the caller still intends to Apply.
//
// Pattern: Strategy — concrete policies (Bulkhead, Retry, CircuitBreaker,
// RateLimiter, Timeout, Switchable) are interchangeable behind this single
// entry point and compose via [Layer].
type Policy[T any] interface {
	Apply(ctx context.Context, op Operation[T]) (T, error)
	Release()
}

// ---------------------------------------------------------------------------
// Noop — identity policy
// ---------------------------------------------------------------------------

// noopPolicy runs the operation unchanged.
type noopPolicy[T any] struct{}

func (noopPolicy[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	return op(ctx)
}

func (noopPolicy[T]) Release() {}

// Noop returns the identity policy: it always runs the operation, never
// rejects, holds no state, and Release is a no-op. It is the safe target
// for disabling resilience via [Switchable.Switch].
//
//nolint:ireturn // intentionally opaque — the noop has no surface beyond Policy
func Noop[T any]() Policy[T] {
	return noopPolicy[T]{}
}
