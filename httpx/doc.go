// Package httpx provides a resilient HTTP client adapter for the s8e
// library.
//
// Client wraps a standard http.Client with a hot-swappable s8e policy and a
// user-provided status code classifier that maps HTTP response codes to
// transient or permanent errors. The policy can be replaced at runtime —
// for example when a config reload changes the resilience profile — without
// dropping requests already in flight.
package httpx
