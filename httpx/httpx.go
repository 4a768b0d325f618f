package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/byte4ever/s8e"
)

// ErrorClass tells the resilience layer how to treat an HTTP status code.
type ErrorClass int

const (
	// Success means the request succeeded (e.g. 2xx).
	Success ErrorClass = iota
	// Transient means the error is retriable (e.g. 429, 503).
	Transient
	// Permanent means the error is non-retriable (e.g. 400).
	Permanent
)

// Classifier maps an HTTP status code to an ErrorClass.
//
// Pattern: Strategy — caller injects classification logic without modifying
// the adapter.
type Classifier func(statusCode int) ErrorClass

// DefaultClassifier treats 2xx as success, 408/429/5xx as transient, and
// every other non-2xx status as permanent.
func DefaultClassifier(statusCode int) ErrorClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Success
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return Transient
	default:
		return Permanent
	}
}

// StatusError is returned when the Classifier marks a status code as
// Transient or Permanent. The original response remains accessible for
// header/body inspection.
type StatusError struct {
	// Response is the original HTTP response that triggered the error.
	// The body has not been read or closed.
	Response   *http.Response
	StatusCode int
}

// Error returns a human-readable description of the status error.
func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode)
}

// Client wraps an http.Client with a switchable s8e policy and HTTP status
// code classification.
//
// Pattern: Adapter — bridges net/http and s8e by translating HTTP status
// codes into s8e error classification, while the switchable lets the
// resilience profile change at runtime without dropping in-flight requests.
type Client struct {
	hc *http.Client
	sw *s8e.Switchable[*http.Response]
	cl Classifier
}

// NewClient creates a Client whose requests run through the policy produced
// by acquire. The classifier determines how HTTP status codes map to
// transient or permanent errors for retry decisions; nil means
// [DefaultClassifier].
func NewClient(
	hc *http.Client,
	cl Classifier,
	acquire func() (s8e.Policy[*http.Response], error),
	opts ...s8e.SwitchOption,
) (*Client, error) {
	sw, err := s8e.NewSwitchable(acquire, opts...)
	if err != nil {
		return nil, err
	}

	if cl == nil {
		cl = DefaultClassifier
	}

	return &Client{hc: hc, sw: sw, cl: cl}, nil
}

// Do executes req through the current policy. Responses whose status the
// classifier marks Transient or Permanent become a *StatusError carrying
// the matching s8e classification, so an inner retry policy reacts
// correctly.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.sw.Apply(req.Context(), func(ctx context.Context) (*http.Response, error) {
		resp, err := c.hc.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}

		switch c.cl(resp.StatusCode) {
		case Transient:
			return resp, s8e.Transient(&StatusError{Response: resp, StatusCode: resp.StatusCode})
		case Permanent:
			return resp, s8e.Permanent(&StatusError{Response: resp, StatusCode: resp.StatusCode})
		default:
			return resp, nil
		}
	})
}

// SwitchPolicy replaces the client's policy per mode. The returned channel
// closes once the previous policy has been fully released.
func (c *Client) SwitchPolicy(
	acquire func() (s8e.Policy[*http.Response], error),
	mode s8e.SwitchMode,
) (<-chan struct{}, error) {
	return c.sw.Switch(acquire, mode)
}

// Close releases the client's policy. The underlying http.Client belongs to
// the caller and is untouched.
func (c *Client) Close() {
	c.sw.Release()
}
