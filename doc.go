// Package s8e provides hot-swappable resilience policies for Go applications.
//
// The central type is Policy[T], a single-method contract that wraps an
// operation with admission control or failure recovery: bulkhead, retry,
// circuit breaker, rate limiter, timeout. Policies are composed with
// Layer and swapped at runtime — without dropping in-flight calls — through
// Switchable[T].
package s8e
