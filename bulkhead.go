package s8e

import (
	"context"
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

type bulkheadConfig struct {
	hooks     *Hooks
	maxQueued int
}

// BulkheadOption configures bulkhead behavior.
type BulkheadOption func(*bulkheadConfig)

// WithQueue gives the bulkhead a bounded FIFO wait queue of n slots. Calls
// arriving while all permits are held suspend in the queue instead of being
// rejected, and are admitted in arrival order as permits free up. Default
// is 0: no queue, reject immediately at capacity.
func WithQueue(n int) BulkheadOption {
	return func(cfg *bulkheadConfig) {
		cfg.maxQueued = n
	}
}

// BulkheadHooks sets the lifecycle hooks emitted on admission events.
func BulkheadHooks(h *Hooks) BulkheadOption {
	return func(cfg *bulkheadConfig) {
		cfg.hooks = h
	}
}

// Construction errors.
var (
	errMaxInFlight = policyError("maxInFlight must be > 0")
	errMaxQueued   = policyError("queue size must be >= 0")
)

// ---------------------------------------------------------------------------
// Bulkhead
// ---------------------------------------------------------------------------

// bulkheadWaiter is one queued call. The permit is handed to a waiter
// directly (handed set, channel closed) so FIFO order survives races with
// fresh arrivals; err is written before close when the waiter is woken
// without a permit.
type bulkheadWaiter struct {
	granted chan struct{}
	err     error
	handed  bool
}

// Bulkhead is a [Policy] bounding concurrent in-flight calls. It holds
// maxInFlight permits; a call either takes a free permit, suspends in the
// FIFO queue (if configured and not full), or is rejected with
// [ErrBulkheadRejected].
//
// Pattern: Bulkhead — bounded admission prevents a slow dependency from
// absorbing every goroutine in the process. Single-mutex discipline: the
// permit count and queue mutate only under mu, so admitted calls can never
// exceed capacity. The invariant inFlight + available == maxInFlight holds
// at every instant, on every exit path including cancellation.
type Bulkhead[T any] struct {
	hooks *Hooks

	mu        sync.Mutex
	available int
	queue     []*bulkheadWaiter
	released  bool

	maxInFlight int
	maxQueued   int
}

// NewBulkhead creates a bulkhead admitting at most maxInFlight concurrent
// calls. Returns a construction error if maxInFlight <= 0 or a negative
// queue size was configured.
func NewBulkhead[T any](maxInFlight int, opts ...BulkheadOption) (*Bulkhead[T], error) {
	cfg := bulkheadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if maxInFlight <= 0 {
		return nil, fmt.Errorf("s8e: bulkhead: %w", errMaxInFlight)
	}

	if cfg.maxQueued < 0 {
		return nil, fmt.Errorf("s8e: bulkhead: %w", errMaxQueued)
	}

	if cfg.hooks == nil {
		cfg.hooks = &Hooks{}
	}

	return &Bulkhead[T]{
		hooks:       cfg.hooks,
		available:   maxInFlight,
		maxInFlight: maxInFlight,
		maxQueued:   cfg.maxQueued,
	}, nil
}

// Apply admits op under the concurrency bound: fast-path permit, FIFO queue
// wait, or immediate [ErrBulkheadRejected]. The permit is returned
// unconditionally when op finishes — success, failure, or cancellation.
func (b *Bulkhead[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	if err := b.acquire(ctx); err != nil {
		return zero, err
	}
	defer b.releasePermit()

	return op(ctx)
}

// acquire takes a permit, queueing if necessary. It returns nil once a
// permit is held.
func (b *Bulkhead[T]) acquire(ctx context.Context) error {
	b.mu.Lock()

	if b.released {
		b.mu.Unlock()
		return ErrPolicyReleased
	}

	// Fast path: free permit.
	if b.available > 0 {
		b.available--
		b.mu.Unlock()
		b.hooks.emitPermitAcquired()

		return nil
	}

	// Queue if there is room.
	if len(b.queue) >= b.maxQueued {
		b.mu.Unlock()
		b.hooks.emitBulkheadRejected()

		return ErrBulkheadRejected
	}

	w := &bulkheadWaiter{granted: make(chan struct{})}
	b.queue = append(b.queue, w)
	b.mu.Unlock()
	b.hooks.emitBulkheadQueued()

	select {
	case <-w.granted:
		if w.err != nil {
			return w.err
		}

		b.hooks.emitPermitAcquired()

		return nil

	case <-ctx.Done():
		b.mu.Lock()
		if w.handed {
			// The grant raced the cancellation and won: a permit was
			// already handed to this waiter. Pass it straight on so
			// capacity is not leaked.
			b.mu.Unlock()
			b.releasePermit()

			return ctx.Err()
		}

		b.removeWaiterLocked(w)
		b.mu.Unlock()

		return ctx.Err()
	}
}

// releasePermit returns one permit to the pool, handing it directly to the
// longest-waiting queued call if any. Direct handover keeps grants strictly
// FIFO: a fresh arrival cannot steal the permit because it never becomes
// available.
func (b *Bulkhead[T]) releasePermit() {
	b.mu.Lock()

	if len(b.queue) > 0 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		w.handed = true
		close(w.granted)
		b.mu.Unlock()
		b.hooks.emitPermitReleased()

		return
	}

	if b.available < b.maxInFlight {
		b.available++
	}
	b.mu.Unlock()
	b.hooks.emitPermitReleased()
}

// removeWaiterLocked drops w from the queue, freeing its slot. No-op if w
// was already granted or swept by Release.
func (b *Bulkhead[T]) removeWaiterLocked(target *bulkheadWaiter) {
	for i, w := range b.queue {
		if w == target {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
}

// Release tears the bulkhead down: queued waiters wake with
// [ErrPolicyReleased] and subsequent Applies are rejected with the same
// error. Calls already running are unaffected; their permits return to the
// pool as they finish. Idempotent.
func (b *Bulkhead[T]) Release() {
	b.mu.Lock()

	if b.released {
		b.mu.Unlock()
		return
	}

	b.released = true
	waiters := b.queue
	b.queue = nil
	for _, w := range waiters {
		w.err = ErrPolicyReleased
		close(w.granted)
	}
	b.mu.Unlock()
}

// InFlight returns the number of calls currently holding a permit.
func (b *Bulkhead[T]) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.maxInFlight - b.available
}

// Queued returns the number of calls suspended in the wait queue.
func (b *Bulkhead[T]) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Full reports whether all permits are in use.
func (b *Bulkhead[T]) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.available == 0
}
