package s8e

import "context"

// Do is a convenience function that runs a single operation through an
// ad-hoc stack of policies without keeping the composite around. The
// policies are not released; ownership stays with the caller.
func Do[T any](ctx context.Context, op Operation[T], policies ...Policy[T]) (T, error) {
	return Layer(policies...).Apply(ctx, op)
}
