package s8e

import "time"

// Pattern: Factory Function — each preset produces a ready-made policy
// acquisition for a common use case, avoiding boilerplate configuration.
// Acquisitions plug straight into [NewSwitchable] and [Switchable.Switch].

// StandardClient returns an acquisition suitable for a typical network
// client: 5s timeout, retry 3 times with 100ms exponential backoff, and a
// circuit breaker with 5-failure threshold and 30s recovery.
func StandardClient[T any]() func() (Policy[T], error) {
	return func() (Policy[T], error) {
		rt, err := NewRetry[T](MaxAttempts(3, ExponentialBackoff(100*time.Millisecond)))
		if err != nil {
			return nil, err
		}

		return Layer(
			NewTimeout[T](5*time.Second, nil),
			NewCircuitBreaker[T](
				FailureThreshold(5),
				RecoveryTimeout(30*time.Second),
			),
			rt,
		), nil
	}
}

// GuardedClient returns an acquisition for latency-sensitive clients under
// load: 2s timeout, a bulkhead of 20 concurrent calls with a 10-slot queue,
// and retry 5 times with 50ms exponential backoff capped at 5s.
func GuardedClient[T any]() func() (Policy[T], error) {
	return func() (Policy[T], error) {
		bh, err := NewBulkhead[T](20, WithQueue(10))
		if err != nil {
			return nil, err
		}

		rt, err := NewRetry[T](
			MaxAttempts(5, CappedBackoff(ExponentialBackoff(50*time.Millisecond), 5*time.Second)),
		)
		if err != nil {
			return nil, err
		}

		return Layer(NewTimeout[T](2*time.Second, nil), bh, rt), nil
	}
}

// BatchWorkload returns an acquisition for background batch work: no
// timeout, a narrow bulkhead of 4 with a deep 64-slot queue, and retries
// bounded to a 10-minute budget with 1s linear backoff.
func BatchWorkload[T any]() func() (Policy[T], error) {
	return func() (Policy[T], error) {
		bh, err := NewBulkhead[T](4, WithQueue(64))
		if err != nil {
			return nil, err
		}

		rt, err := NewRetry[T](MaxElapsed(10*time.Minute, LinearBackoff(time.Second)))
		if err != nil {
			return nil, err
		}

		return Layer(bh, rt), nil
	}
}

// Unguarded returns an acquisition producing the [Noop] policy. Switch to
// it to disable resilience at runtime without tearing down callers.
func Unguarded[T any]() func() (Policy[T], error) {
	return func() (Policy[T], error) {
		return Noop[T](), nil
	}
}
