package s8e

import "context"

// Pattern: Decorator — policies wrap one another, forming a composable
// stack where order determines execution semantics.

// layered is the composite produced by [Layer].
type layered[T any] struct {
	policies []Policy[T]
}

// Layer composes policies into a single [Policy]. The first policy is the
// outermost wrapper: Layer(a, b, c).Apply runs a's rule around b's around
// c's around the operation. Layer() with zero policies behaves like
// [Noop].
//
//nolint:ireturn // composite is opaque; the Policy contract is its whole surface
func Layer[T any](policies ...Policy[T]) Policy[T] {
	if len(policies) == 1 {
		return policies[0]
	}

	return &layered[T]{policies: policies}
}

// Apply threads op through the stack, innermost policy closest to the
// operation.
func (l *layered[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	next := op
	for i := len(l.policies) - 1; i >= 0; i-- {
		p := l.policies[i]
		inner := next
		next = func(ctx context.Context) (T, error) {
			return p.Apply(ctx, inner)
		}
	}

	return next(ctx)
}

// Release releases every member policy, outermost first, so no member can
// admit a call into an already-released inner policy.
func (l *layered[T]) Release() {
	for _, p := range l.policies {
		p.Release()
	}
}
