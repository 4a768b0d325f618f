package s8e

import "errors"

// ---------------------------------------------------------------------------
// Error classification wrappers
// ---------------------------------------------------------------------------.

type (
	// PolicyError identifies errors produced by a policy itself — a
	// rejection or an infrastructure condition — as opposed to errors
	// returned by the wrapped operation, which pass through unchanged.
	//nolint:iface // exported for use in tests and consumer error
	// classification.
	PolicyError interface {
		error
		// IsPolicy reports whether this error originates from the policy
		// layer rather than from the wrapped operation.
		IsPolicy() bool
	}

	// transientError marks a wrapped error as transient (retriable).
	transientError struct {
		err error
	}

	// permanentError marks a wrapped error as permanent (non-retriable).
	permanentError struct {
		err error
	}

	// policyError is the concrete type backing all sentinel errors.
	policyError string
)

// Sentinel policy errors.
var (
	// ErrBulkheadRejected is returned when both the bulkhead's permits and
	// its wait queue are exhausted.
	ErrBulkheadRejected error = policyError("bulkhead rejected call")
	// ErrRetriesExhausted is returned when a retry schedule signals stop
	// while the operation is still failing.
	ErrRetriesExhausted error = policyError("retries exhausted")
	// ErrCircuitOpen is returned when the circuit breaker is in the open
	// state.
	ErrCircuitOpen error = policyError("circuit breaker is open")
	// ErrRateLimited is returned when a call is rejected by a rate limiter.
	ErrRateLimited error = policyError("rate limited")
	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout error = policyError("timeout")
	// ErrPolicyReleased is returned when a call reaches a policy instance
	// that has already been released.
	ErrPolicyReleased error = policyError("policy released")
)

func (e *transientError) Error() string { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (e policyError) Error() string { return string(e) }

// IsPolicy reports whether the error is a policy-layer error.
func (policyError) IsPolicy() bool { return true }

// IsRejection reports whether err means the policy refused (or gave up on)
// the call, as opposed to the wrapped operation failing on its own.
// Exhaustion errors wrap the operation's last failure, so both IsRejection
// and errors.Is against the underlying error hold for them.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}

	var pe PolicyError

	return errors.As(err, &pe) && pe.IsPolicy()
}

// Transient wraps err to mark it as a transient (retriable) error.
// Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// Permanent wraps err to mark it as a permanent (non-retriable) error.
// Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsTransient reports whether err is transient. Unclassified (unwrapped)
// errors are treated as transient. Returns false for nil.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// Explicitly permanent errors are not transient.
	var pe *permanentError

	return !errors.As(err, &pe)
}

// IsPermanent reports whether err was explicitly marked as permanent.
// Returns false for nil and for unclassified errors.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError

	return errors.As(err, &pe)
}
