package s8e_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/byte4ever/s8e"
)

// ---------------------------------------------------------------------------
// Transient wrapping and detection
// ---------------------------------------------------------------------------

func TestTransientWrapsError(t *testing.T) {
	cause := errors.New("connection reset")
	err := s8e.Transient(cause)

	if err == nil {
		t.Fatal("Transient(non-nil) returned nil")
	}
	if got := err.Error(); got != "transient: connection reset" {
		t.Fatalf("Error() = %q, want %q", got, "transient: connection reset")
	}
}

func TestTransientNilReturnsNil(t *testing.T) {
	if err := s8e.Transient(nil); err != nil {
		t.Fatalf("Transient(nil) = %v, want nil", err)
	}
}

func TestIsTransientDetectsTransient(t *testing.T) {
	err := s8e.Transient(errors.New("oops"))
	if !s8e.IsTransient(err) {
		t.Fatal("IsTransient(Transient(err)) = false, want true")
	}
}

func TestIsTransientUnclassifiedTreatedAsTransient(t *testing.T) {
	err := errors.New("some random error")
	if !s8e.IsTransient(err) {
		t.Fatal("IsTransient(unclassified) = false, want true")
	}
}

func TestIsTransientNilReturnsFalse(t *testing.T) {
	if s8e.IsTransient(nil) {
		t.Fatal("IsTransient(nil) = true, want false")
	}
}

func TestIsTransientPermanentReturnsFalse(t *testing.T) {
	err := s8e.Permanent(errors.New("bad request"))
	if s8e.IsTransient(err) {
		t.Fatal("IsTransient(Permanent(err)) = true, want false")
	}
}

// ---------------------------------------------------------------------------
// Permanent wrapping and detection
// ---------------------------------------------------------------------------

func TestPermanentWrapsError(t *testing.T) {
	cause := errors.New("invalid argument")
	err := s8e.Permanent(cause)

	if err == nil {
		t.Fatal("Permanent(non-nil) returned nil")
	}
	if got := err.Error(); got != "permanent: invalid argument" {
		t.Fatalf("Error() = %q, want %q", got, "permanent: invalid argument")
	}
}

func TestPermanentNilReturnsNil(t *testing.T) {
	if err := s8e.Permanent(nil); err != nil {
		t.Fatalf("Permanent(nil) = %v, want nil", err)
	}
}

func TestIsPermanentDetectsPermanent(t *testing.T) {
	err := s8e.Permanent(errors.New("oops"))
	if !s8e.IsPermanent(err) {
		t.Fatal("IsPermanent(Permanent(err)) = false, want true")
	}
}

func TestIsPermanentUnclassifiedReturnsFalse(t *testing.T) {
	err := errors.New("some random error")
	if s8e.IsPermanent(err) {
		t.Fatal("IsPermanent(unclassified) = true, want false")
	}
}

func TestIsPermanentTransientReturnsFalse(t *testing.T) {
	err := s8e.Transient(errors.New("timeout"))
	if s8e.IsPermanent(err) {
		t.Fatal("IsPermanent(Transient(err)) = true, want false")
	}
}

// ---------------------------------------------------------------------------
// Unwrap / errors.Is / errors.As support
// ---------------------------------------------------------------------------

func TestTransientUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := s8e.Transient(cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(Transient(cause), cause) = false, want true")
	}
}

func TestPermanentUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := s8e.Permanent(cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(Permanent(cause), cause) = false, want true")
	}
}

// Use a proper custom error for errors.As testing.
type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func TestTransientErrorsAsCustomType(t *testing.T) {
	cause := &codedError{code: 42, msg: "bad thing"}
	err := s8e.Transient(cause)

	var target *codedError
	if !errors.As(err, &target) {
		t.Fatal("errors.As(Transient(cause), &codedError) = false, want true")
	}
	if target.code != 42 {
		t.Fatalf("target.code = %d, want 42", target.code)
	}
}

func TestIsTransientDetectsWrappedTransient(t *testing.T) {
	inner := s8e.Transient(errors.New("timeout"))
	wrapped := fmt.Errorf("layer: %w", inner)

	if !s8e.IsTransient(wrapped) {
		t.Fatal("IsTransient on wrapped transient = false, want true")
	}
}

func TestIsPermanentDetectsWrappedPermanent(t *testing.T) {
	inner := s8e.Permanent(errors.New("bad input"))
	wrapped := fmt.Errorf("layer: %w", inner)

	if !s8e.IsPermanent(wrapped) {
		t.Fatal("IsPermanent on wrapped permanent = false, want true")
	}
}

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

func sentinelErrors() []error {
	return []error{
		s8e.ErrBulkheadRejected,
		s8e.ErrRetriesExhausted,
		s8e.ErrCircuitOpen,
		s8e.ErrRateLimited,
		s8e.ErrTimeout,
		s8e.ErrPolicyReleased,
	}
}

func TestSentinelErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{s8e.ErrBulkheadRejected, "bulkhead rejected call"},
		{s8e.ErrRetriesExhausted, "retries exhausted"},
		{s8e.ErrCircuitOpen, "circuit breaker is open"},
		{s8e.ErrRateLimited, "rate limited"},
		{s8e.ErrTimeout, "timeout"},
		{s8e.ErrPolicyReleased, "policy released"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("%T.Error() = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSentinelErrorsAreRejections(t *testing.T) {
	for _, sentinel := range sentinelErrors() {
		if !s8e.IsRejection(sentinel) {
			t.Errorf("IsRejection(%v) = false, want true", sentinel)
		}
	}
}

func TestIsRejectionNonPolicyErrors(t *testing.T) {
	if s8e.IsRejection(nil) {
		t.Fatal("IsRejection(nil) = true, want false")
	}
	if s8e.IsRejection(errors.New("application error")) {
		t.Fatal("IsRejection(plain error) = true, want false")
	}
}

func TestSentinelErrorsDetectableViaErrorsIsWhenWrapped(t *testing.T) {
	for _, sentinel := range sentinelErrors() {
		wrapped := fmt.Errorf("context: %w", sentinel)
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("errors.Is(wrapped, %v) = false, want true", sentinel)
		}
		if !s8e.IsRejection(wrapped) {
			t.Errorf("IsRejection(wrapped %v) = false, want true", sentinel)
		}
	}
}
