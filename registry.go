package s8e

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Registry — named switchables and their configurations
// ---------------------------------------------------------------------------.

// Registry tracks named [Switchable] instances so they can be hot-swapped
// and inspected by name, and holds policy configurations loaded from file.
//
// Pattern: Singleton — DefaultRegistry uses sync.OnceValue for safe lazy
// init; explicit registries can be created for testing or multi-tenant
// scenarios.
type Registry struct {
	reporters atomic.Pointer[[]StatusReporter]
	configs   map[string]PolicyConfig
	mu        sync.Mutex
}

//nolint:gochecknoglobals // singleton via sync.OnceValue
var defaultRegistry = sync.OnceValue(NewRegistry)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}

	var empty []StatusReporter

	r.reporters.Store(&empty)

	return r
}

// DefaultRegistry returns the package-level global registry, creating it on
// first call.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// register adds a reporter. Called by NewSwitchable for named switchables.
// Safe for concurrent use but intended for initialization.
func (r *Registry) register(sr StatusReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.reporters.Load()
	// Copy-on-write so concurrent Snapshot readers never see a slice being
	// mutated.
	updated := make([]StatusReporter, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, sr)
	r.reporters.Store(&updated)
}

// Snapshot reports the routing state of every registered switchable.
// Draining is true if any switchable has a pending FinishInFlight flip.
func (r *Registry) Snapshot() StatusSnapshot {
	reporters := *r.reporters.Load()

	snapshot := StatusSnapshot{
		Policies: make([]SwitchStatus, 0, len(reporters)),
	}

	for _, sr := range reporters {
		st := sr.Status()
		snapshot.Policies = append(snapshot.Policies, st)

		if st.State == StateDraining {
			snapshot.Draining = true
		}
	}

	return snapshot
}

// lookup finds a reporter by name.
func (r *Registry) lookup(name string) (StatusReporter, bool) {
	for _, sr := range *r.reporters.Load() {
		if sr.Name() == name {
			return sr, true
		}
	}

	return nil, false
}

// Swap errors.
var (
	errUnknownPolicy = policyError("no switchable registered under name")
	errTypeMismatch  = policyError("switchable registered with a different type parameter")
)

// Swap performs a hot swap on the switchable registered under name. The
// type parameter must match the one the switchable was created with.
// Returns the switch's release signal.
func Swap[T any](
	reg *Registry,
	name string,
	acquire func() (Policy[T], error),
	mode SwitchMode,
) (<-chan struct{}, error) {
	sr, ok := reg.lookup(name)
	if !ok {
		return nil, fmt.Errorf("s8e: %q: %w", name, errUnknownPolicy)
	}

	ns, ok := sr.(*namedSwitchable[T])
	if !ok {
		return nil, fmt.Errorf("s8e: %q: %w", name, errTypeMismatch)
	}

	return ns.s.Switch(acquire, mode)
}
