package s8e

import "time"

// ---------------------------------------------------------------------------
// Schedule — retry decision function
// ---------------------------------------------------------------------------

// Schedule decides whether a failing call should be retried. Next receives
// the 0-indexed attempt that just failed and the time elapsed since the
// first attempt began, and returns the delay before the next attempt plus
// true, or false to stop. Implementations must be pure: all per-call state
// (attempt index, elapsed time) is supplied by the caller, so a single
// Schedule value is safely shared by concurrent calls.
type Schedule interface {
	Next(attempt int, elapsed time.Duration) (time.Duration, bool)
}

// ScheduleFunc adapts an ordinary function into a [Schedule].
type ScheduleFunc func(attempt int, elapsed time.Duration) (time.Duration, bool)

// Next calls the underlying function.
func (f ScheduleFunc) Next(attempt int, elapsed time.Duration) (time.Duration, bool) {
	return f(attempt, elapsed)
}

// ---------------------------------------------------------------------------
// MaxAttempts
// ---------------------------------------------------------------------------

// maxAttemptsSchedule stops after n total attempts.
type maxAttemptsSchedule struct {
	strategy BackoffStrategy
	n        int
}

func (s *maxAttemptsSchedule) Next(attempt int, _ time.Duration) (time.Duration, bool) {
	// attempt is 0-indexed; attempt n-1 is the last permitted execution.
	if attempt >= s.n-1 {
		return 0, false
	}

	return s.strategy.Delay(attempt), true
}

// MaxAttempts returns a [Schedule] that allows at most n executions of the
// operation, delaying between them per strategy. n <= 1 means execute
// exactly once with no retries.
func MaxAttempts(n int, strategy BackoffStrategy) Schedule {
	return &maxAttemptsSchedule{n: n, strategy: strategy}
}

// ---------------------------------------------------------------------------
// MaxElapsed
// ---------------------------------------------------------------------------

// maxElapsedSchedule stops once the call has been running longer than d.
type maxElapsedSchedule struct {
	strategy BackoffStrategy
	d        time.Duration
}

func (s *maxElapsedSchedule) Next(attempt int, elapsed time.Duration) (time.Duration, bool) {
	delay := s.strategy.Delay(attempt)

	// Elapsed time is measured from the first attempt, so a bounded
	// schedule terminates deterministically: stop as soon as the budget
	// is spent or the next delay would overrun it.
	if elapsed+delay >= s.d {
		return 0, false
	}

	return delay, true
}

// MaxElapsed returns a [Schedule] that retries, delaying per strategy, until
// the total time since the first attempt (including the upcoming delay)
// would reach d.
func MaxElapsed(d time.Duration, strategy BackoffStrategy) Schedule {
	return &maxElapsedSchedule{d: d, strategy: strategy}
}

// ---------------------------------------------------------------------------
// Unlimited
// ---------------------------------------------------------------------------

// unlimitedSchedule never stops on its own.
type unlimitedSchedule struct {
	strategy BackoffStrategy
}

func (s *unlimitedSchedule) Next(attempt int, _ time.Duration) (time.Duration, bool) {
	return s.strategy.Delay(attempt), true
}

// Unlimited returns a [Schedule] that retries forever, delaying per
// strategy. Callers are expected to bound the call through the context or
// an outer [Timeout] policy.
func Unlimited(strategy BackoffStrategy) Schedule {
	return &unlimitedSchedule{strategy: strategy}
}
