package engine

// State enumerates the orchestrator lifecycle.
type State int

// Orchestrator states.
const (
	StateIdle State = iota
	StateSampling
	StateAwaitingCapture
	StateValidating
	StateResolved
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateAwaitingCapture:
		return "awaiting-capture"
	case StateValidating:
		return "validating"
	case StateResolved:
		return "resolved"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// StateEvent is the UI-facing view of a capture session, emitted on every
// sampling tick and state transition. Delivery is best effort: events are
// dropped rather than ever blocking the sampling loop.
type StateEvent struct {
	Session  Session `json:"-"`
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	State    string  `json:"state"`
	Present  bool    `json:"present"`
	Progress float64 `json:"progress"`
	Quality  float64 `json:"quality"`
	Reason   string  `json:"reason,omitempty"`
}

// emit sends the event without blocking; a full channel drops it.
func emit(ch chan StateEvent, ev StateEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
