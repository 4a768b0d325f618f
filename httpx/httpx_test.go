package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/byte4ever/s8e"
	"github.com/byte4ever/s8e/httpx"
)

func retryAcquire(attempts int) func() (s8e.Policy[*http.Response], error) {
	return func() (s8e.Policy[*http.Response], error) {
		return s8e.NewRetry[*http.Response](
			s8e.MaxAttempts(attempts, s8e.ConstantBackoff(time.Millisecond)),
		)
	}
}

func noopAcquire() func() (s8e.Policy[*http.Response], error) {
	return func() (s8e.Policy[*http.Response], error) {
		return s8e.Noop[*http.Response](), nil
	}
}

// ---------------------------------------------------------------------------
// DefaultClassifier
// ---------------------------------------------------------------------------

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		status int
		want   httpx.ErrorClass
	}{
		{200, httpx.Success},
		{204, httpx.Success},
		{299, httpx.Success},
		{301, httpx.Permanent},
		{400, httpx.Permanent},
		{404, httpx.Permanent},
		{408, httpx.Transient},
		{429, httpx.Transient},
		{500, httpx.Transient},
		{503, httpx.Transient},
	}

	for _, tt := range tests {
		if got := httpx.DefaultClassifier(tt.status); got != tt.want {
			t.Errorf("DefaultClassifier(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// StatusError
// ---------------------------------------------------------------------------

func TestStatusErrorMessage(t *testing.T) {
	err := &httpx.StatusError{StatusCode: 503}
	if got := err.Error(); got != "http status 503" {
		t.Fatalf("Error() = %q, want %q", got, "http status 503")
	}
}

// ---------------------------------------------------------------------------
// Client: transient failures are retried
// ---------------------------------------------------------------------------

func TestClientRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.Client(), nil, retryAcquire(5))
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	defer client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3 (two retries)", hits.Load())
	}
}

// ---------------------------------------------------------------------------
// Client: permanent failures are not retried
// ---------------------------------------------------------------------------

func TestClientDoesNotRetryPermanentStatus(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.Client(), nil, retryAcquire(5))
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	defer client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	resp, err := client.Do(req)
	if err == nil {
		t.Fatal("Do() error = nil, want a status error")
	}

	var se *httpx.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want %d", se.StatusCode, http.StatusBadRequest)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1 (no retries on 400)", hits.Load())
	}
	if resp != nil {
		resp.Body.Close()
	}
}

// ---------------------------------------------------------------------------
// Client: exhaustion surfaces as a rejection wrapping the status error
// ---------------------------------------------------------------------------

func TestClientRetriesExhausted(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.Client(), nil, retryAcquire(3))
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	defer client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	_, err = client.Do(req) //nolint:bodyclose // no successful response to close
	if !errors.Is(err, s8e.ErrRetriesExhausted) {
		t.Fatalf("Do() error = %v, want ErrRetriesExhausted", err)
	}
	if !s8e.IsRejection(err) {
		t.Fatal("IsRejection(exhaustion) = false, want true")
	}

	var se *httpx.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("exhaustion error does not carry the last StatusError: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", hits.Load())
	}
}

// ---------------------------------------------------------------------------
// Custom classifier overrides the default
// ---------------------------------------------------------------------------

func TestClientCustomClassifier(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// Treat 404 as transient: some backends return it while warming up.
	classifier := func(status int) httpx.ErrorClass {
		if status == http.StatusNotFound {
			return httpx.Transient
		}
		return httpx.DefaultClassifier(status)
	}

	client, err := httpx.NewClient(srv.Client(), classifier, retryAcquire(2))
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	defer client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	_, _ = client.Do(req) //nolint:bodyclose // every response is a 404

	if hits.Load() != 2 {
		t.Fatalf("server hit %d times, want 2 (404 retried once)", hits.Load())
	}
}

// ---------------------------------------------------------------------------
// SwitchPolicy changes behavior at runtime
// ---------------------------------------------------------------------------

func TestClientSwitchPolicy(t *testing.T) {
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.Client(), nil, retryAcquire(3))
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	defer client.Close()

	released, err := client.SwitchPolicy(noopAcquire(), s8e.Transition)
	if err != nil {
		t.Fatalf("SwitchPolicy() error = %v, want nil", err)
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("old policy was not released within 1s")
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	_, err = client.Do(req) //nolint:bodyclose // transient error carries the response
	if err == nil {
		t.Fatal("Do() error = nil, want the classified status error")
	}

	// With the noop in place the 503 is not retried.
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1 (no retry after switch)", hits.Load())
	}
}

// ---------------------------------------------------------------------------
// Close rejects further requests
// ---------------------------------------------------------------------------

func TestClientCloseRejectsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.Client(), nil, noopAcquire())
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}

	client.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	if _, err := client.Do(req); !errors.Is(err, s8e.ErrPolicyReleased) { //nolint:bodyclose // request is rejected
		t.Fatalf("Do() after Close = %v, want ErrPolicyReleased", err)
	}
}

// ---------------------------------------------------------------------------
// Construction failure propagates
// ---------------------------------------------------------------------------

func TestNewClientAcquisitionFailure(t *testing.T) {
	boom := errors.New("cannot build policy")

	if _, err := httpx.NewClient(http.DefaultClient, nil, func() (s8e.Policy[*http.Response], error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("NewClient() error = %v, want the acquisition error", err)
	}
}
