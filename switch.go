package s8e

import (
	"context"
	"sync"
)

// ---------------------------------------------------------------------------
// SwitchMode
// ---------------------------------------------------------------------------

// SwitchMode selects how [Switchable.Switch] treats calls that are in
// flight on the outgoing instance.
type SwitchMode int

const (
	// Transition flips routing to the new instance immediately. Calls
	// still in flight on the old instance run to completion (or external
	// cancellation); the old instance is released in the background once
	// its in-flight count reaches zero.
	Transition SwitchMode = iota
	// FinishInFlight keeps routing every call — including calls issued
	// after the switch — to the old instance until its in-flight count
	// reaches zero, preserving its admission accounting for the whole
	// draining window. Only then does routing flip and the old instance
	// get released.
	FinishInFlight
)

// String returns the mode as a human-readable string.
func (m SwitchMode) String() string {
	switch m {
	case FinishInFlight:
		return "finish_in_flight"
	default:
		return "transition"
	}
}

// ---------------------------------------------------------------------------
// Switchable[T]
// ---------------------------------------------------------------------------

// switchEntry is one live policy instance under a [Switchable], with the
// per-instance accounting the swap protocol needs. All fields except policy
// and released are guarded by the owning Switchable's mutex.
type switchEntry[T any] struct {
	policy Policy[T]

	// released is closed once policy.Release has completed.
	released chan struct{}

	inFlight int
	// retired means no further calls will be dispatched here; release
	// when inFlight reaches zero.
	retired bool
	// releaseStarted guards the release so it runs at most once.
	releaseStarted bool
}

// Switchable is a dispatch point whose backing [Policy] instance can be
// replaced at runtime without breaking calls in flight. It implements
// [Policy] itself, so switchables nest and compose like any other policy.
//
// Every Apply is bracketed by incrementing and decrementing the in-flight
// counter of the instance it was dispatched to; an instance is released
// only after that counter reaches zero, and exactly once. All routing state
// — the active instance, a pending FinishInFlight target, the per-instance
// counters — mutates under a single mutex, so no interleaving of Apply,
// Switch, and Release can double-release an instance or dispatch a call to
// a released one.
type Switchable[T any] struct {
	hooks *Hooks

	mu     sync.Mutex
	active *switchEntry[T]
	// pending holds a FinishInFlight target waiting for active to drain.
	// Invariant: pending != nil implies active.inFlight > 0 — the moment
	// the count hits zero the flip happens under the same mutex.
	pending  *switchEntry[T]
	released bool
}

// switchConfig holds optional Switchable configuration.
type switchConfig struct {
	hooks    *Hooks
	name     string
	registry *Registry
}

// SwitchOption configures a [Switchable].
type SwitchOption func(*switchConfig)

// SwitchHooks sets the lifecycle hooks emitted on switch and release
// events.
func SwitchHooks(h *Hooks) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.hooks = h
	}
}

// SwitchName names the switchable and registers it with a [Registry]
// (DefaultRegistry unless [SwitchRegistry] is also given), making it
// reachable for by-name hot swaps and status snapshots.
func SwitchName(name string) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.name = name
	}
}

// SwitchRegistry sets an explicit registry to register a named switchable
// with.
func SwitchRegistry(reg *Registry) SwitchOption {
	return func(cfg *switchConfig) {
		cfg.registry = reg
	}
}

// NewSwitchable constructs a Switchable seeded with the policy produced by
// acquire. If acquire fails, nothing is constructed and the error is
// returned as-is.
func NewSwitchable[T any](acquire func() (Policy[T], error), opts ...SwitchOption) (*Switchable[T], error) {
	initial, err := acquire()
	if err != nil {
		return nil, err
	}

	cfg := switchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.hooks == nil {
		cfg.hooks = &Hooks{}
	}

	s := &Switchable[T]{
		hooks: cfg.hooks,
		active: &switchEntry[T]{
			policy:   initial,
			released: make(chan struct{}),
		},
	}

	if cfg.name != "" {
		reg := cfg.registry
		if reg == nil {
			reg = DefaultRegistry()
		}

		reg.register(&namedSwitchable[T]{name: cfg.name, s: s})
	}

	return s, nil
}

// Apply dispatches op to the routed instance: the active one, which during
// a FinishInFlight drain is still the outgoing instance. Errors are exactly
// the handling instance's errors; the switchable adds none of its own
// beyond [ErrPolicyReleased] after teardown.
func (s *Switchable[T]) Apply(ctx context.Context, op Operation[T]) (T, error) {
	s.mu.Lock()

	if s.released {
		s.mu.Unlock()

		var zero T

		return zero, ErrPolicyReleased
	}

	e := s.active
	e.inFlight++
	s.mu.Unlock()

	defer s.exit(e)

	return e.policy.Apply(ctx, op)
}

// exit undoes one dispatch to e and advances the swap protocol when e's
// in-flight count reaches zero: a retired instance is released, and a
// pending FinishInFlight target becomes active.
func (s *Switchable[T]) exit(e *switchEntry[T]) {
	s.mu.Lock()

	e.inFlight--

	var toRelease *switchEntry[T]

	if e.inFlight == 0 {
		switch {
		case e.retired:
			if s.collectLocked(e) {
				toRelease = e
			}

		case e == s.active && s.pending != nil:
			// Drain complete: flip to the pending target and retire the
			// outgoing instance. Calls dispatched from this point on go to
			// the new instance — no gap, no double-dispatch, because both
			// the flip and every dispatch hold the same mutex.
			s.active = s.pending
			s.pending = nil
			e.retired = true

			if s.collectLocked(e) {
				toRelease = e
			}
		}
	}
	s.mu.Unlock()

	if toRelease != nil {
		s.hooks.emitInstanceDrained()
		s.releaseEntry(toRelease)
	}
}

// collectLocked marks e's release as started. Reports false if it already
// was, guaranteeing at-most-once release.
func (s *Switchable[T]) collectLocked(e *switchEntry[T]) bool {
	if e.releaseStarted {
		return false
	}

	e.releaseStarted = true

	return true
}

// releaseEntry releases e's policy asynchronously and then completes its
// release signal. Callers must have claimed e via collectLocked.
func (s *Switchable[T]) releaseEntry(e *switchEntry[T]) {
	go func() {
		e.policy.Release()
		s.hooks.emitInstanceReleased()
		close(e.released)
	}()
}

// Switch replaces the backing instance with the one produced by acquire,
// per mode. It never blocks the caller: drain and release are scheduled
// asynchronously, and the returned channel is closed once the superseded
// instance has been fully released.
//
// If acquire fails, the switch is aborted and the current instance remains
// active untouched.
//
// A second Switch during a pending FinishInFlight drain supersedes the
// pending target: the superseded target — which never received a call — is
// released immediately, and the draining instance must still reach zero
// in-flight before any flip. Both calls' signals track that draining
// instance.
func (s *Switchable[T]) Switch(acquire func() (Policy[T], error), mode SwitchMode) (<-chan struct{}, error) {
	next, err := acquire()
	if err != nil {
		return nil, err
	}

	entry := &switchEntry[T]{
		policy:   next,
		released: make(chan struct{}),
	}

	s.mu.Lock()

	if s.released {
		s.mu.Unlock()
		// The switchable is gone; don't leak the freshly built instance.
		next.Release()

		return nil, ErrPolicyReleased
	}

	old := s.active

	var toRelease []*switchEntry[T]

	// A superseded pending target never carried a call, so it is released
	// right away.
	if s.pending != nil {
		superseded := s.pending
		s.pending = nil
		superseded.retired = true

		if s.collectLocked(superseded) {
			toRelease = append(toRelease, superseded)
		}
	}

	switch mode {
	case FinishInFlight:
		if old.inFlight > 0 {
			// Leave routing on the old instance; exit() flips when its
			// count reaches zero.
			s.pending = entry

			break
		}

		fallthrough

	case Transition:
		s.active = entry
		old.retired = true

		if old.inFlight == 0 && s.collectLocked(old) {
			toRelease = append(toRelease, old)
		}
	}
	s.mu.Unlock()

	s.hooks.emitSwitch(mode)

	for _, e := range toRelease {
		s.releaseEntry(e)
	}

	return old.released, nil
}

// Release tears the switchable down: the active instance is retired (and
// released once drained), any pending target is released, and subsequent
// Applies fail with [ErrPolicyReleased]. Idempotent.
func (s *Switchable[T]) Release() {
	s.mu.Lock()

	if s.released {
		s.mu.Unlock()
		return
	}

	s.released = true

	var toRelease []*switchEntry[T]

	if s.pending != nil {
		superseded := s.pending
		s.pending = nil
		superseded.retired = true

		if s.collectLocked(superseded) {
			toRelease = append(toRelease, superseded)
		}
	}

	old := s.active
	old.retired = true

	if old.inFlight == 0 && s.collectLocked(old) {
		toRelease = append(toRelease, old)
	}
	s.mu.Unlock()

	for _, e := range toRelease {
		s.releaseEntry(e)
	}
}

// InFlight returns the in-flight count of the currently routed instance.
func (s *Switchable[T]) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active.inFlight
}

// Draining reports whether a FinishInFlight switch is waiting for the
// outgoing instance to drain.
func (s *Switchable[T]) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending != nil
}
