package s8e

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// ---------------------------------------------------------------------------
// StatusReporter interface
// ---------------------------------------------------------------------------.

type (
	// StatusReporter is implemented by named [Switchable] instances. The
	// interface is non-generic, allowing switchables with different type
	// parameters to share one registry.
	StatusReporter interface {
		// Name returns the switchable's registered name.
		Name() string
		// Status returns the current routing state.
		Status() SwitchStatus
	}

	// SwitchStatus represents the current routing state of one switchable.
	SwitchStatus struct {
		Name     string `json:"name"`
		State    string `json:"state"`
		InFlight int    `json:"in_flight"`
	}

	// StatusSnapshot is the result of inspecting all registered
	// switchables.
	StatusSnapshot struct {
		Policies []SwitchStatus `json:"policies"`
		Draining bool           `json:"draining"`
	}
)

// Switchable states reported in SwitchStatus.State.
const (
	// StateActive means calls route to a settled instance.
	StateActive = "active"
	// StateDraining means a FinishInFlight switch is waiting for the
	// outgoing instance to drain.
	StateDraining = "draining"
	// StateReleased means the switchable has been torn down.
	StateReleased = "released"
)

// namedSwitchable binds a registered name to a switchable, erasing its type
// parameter for the registry.
type namedSwitchable[T any] struct {
	s    *Switchable[T]
	name string
}

func (n *namedSwitchable[T]) Name() string { return n.name }

func (n *namedSwitchable[T]) Status() SwitchStatus {
	st := SwitchStatus{Name: n.name}

	n.s.mu.Lock()
	defer n.s.mu.Unlock()

	st.InFlight = n.s.active.inFlight

	switch {
	case n.s.released:
		st.State = StateReleased
	case n.s.pending != nil:
		st.State = StateDraining
	default:
		st.State = StateActive
	}

	return st
}

// ---------------------------------------------------------------------------
// StatusHandler
// ---------------------------------------------------------------------------

// StatusHandler returns an [http.Handler] that reports the routing state of
// every switchable registered with reg as a JSON-encoded [StatusSnapshot].
// Operators use it to watch a FinishInFlight drain complete before retiring
// the dependency behind the old policy.
func StatusHandler(reg *Registry) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		snapshot := reg.Snapshot()

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)

		//nolint:errcheck // best-effort JSON encoding to HTTP response
		_ = json.NewEncoder(writer).Encode(snapshot)
	})
}
