package s8e

// Hooks holds optional callback functions for policy lifecycle events. All
// fields are nil by default; callers set only the hooks they care about.
// Once constructed, a Hooks value must not be mutated — emit methods read
// the function fields without synchronisation, which is safe as long as the
// struct is read-only after initialisation.
//
// Pattern: Observer — decouples policy event emission from consumers
// (logging, metrics, alerting) without policies knowing about observers.
type Hooks struct {
	OnRetry            func(attempt int, err error)
	OnBulkheadRejected func()
	OnBulkheadQueued   func()
	OnPermitAcquired   func()
	OnPermitReleased   func()
	OnCircuitOpen      func()
	OnCircuitClose     func()
	OnCircuitHalfOpen  func()
	OnRateLimited      func()
	OnTimeout          func()
	OnSwitch           func(mode SwitchMode)
	OnInstanceDrained  func()
	OnInstanceReleased func()
}

func (h *Hooks) emitRetry(attempt int, err error) {
	if h.OnRetry != nil {
		h.OnRetry(attempt, err)
	}
}

func (h *Hooks) emitBulkheadRejected() {
	if h.OnBulkheadRejected != nil {
		h.OnBulkheadRejected()
	}
}

func (h *Hooks) emitBulkheadQueued() {
	if h.OnBulkheadQueued != nil {
		h.OnBulkheadQueued()
	}
}

func (h *Hooks) emitPermitAcquired() {
	if h.OnPermitAcquired != nil {
		h.OnPermitAcquired()
	}
}

func (h *Hooks) emitPermitReleased() {
	if h.OnPermitReleased != nil {
		h.OnPermitReleased()
	}
}

func (h *Hooks) emitCircuitOpen() {
	if h.OnCircuitOpen != nil {
		h.OnCircuitOpen()
	}
}

func (h *Hooks) emitCircuitClose() {
	if h.OnCircuitClose != nil {
		h.OnCircuitClose()
	}
}

func (h *Hooks) emitCircuitHalfOpen() {
	if h.OnCircuitHalfOpen != nil {
		h.OnCircuitHalfOpen()
	}
}

func (h *Hooks) emitRateLimited() {
	if h.OnRateLimited != nil {
		h.OnRateLimited()
	}
}

func (h *Hooks) emitTimeout() {
	if h.OnTimeout != nil {
		h.OnTimeout()
	}
}

func (h *Hooks) emitSwitch(mode SwitchMode) {
	if h.OnSwitch != nil {
		h.OnSwitch(mode)
	}
}

func (h *Hooks) emitInstanceDrained() {
	if h.OnInstanceDrained != nil {
		h.OnInstanceDrained()
	}
}

func (h *Hooks) emitInstanceReleased() {
	if h.OnInstanceReleased != nil {
		h.OnInstanceReleased()
	}
}
