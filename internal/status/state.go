package status

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
)

// State is the sync layer's lifecycle state.
type State string

const (
	Booting        State = "BOOTING"
	Restoring      State = "RESTORING"
	SignedOut      State = "SIGNED_OUT"
	Authenticating State = "AUTHENTICATING"
	Ready          State = "READY"
	Degraded       State = "DEGRADED"
	Error          State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:        {Restoring, SignedOut, Ready, Degraded, Error},
	Restoring:      {Ready, SignedOut, Degraded, Error},
	SignedOut:      {Authenticating, Ready, Error},
	Authenticating: {Ready, SignedOut, Degraded, Error},
	Ready:          {SignedOut, Degraded, Error},
	Degraded:       {Authenticating, Ready, SignedOut, Error},
	Error:          {Booting},
}

// Machine tracks and enforces lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  string
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		current: Booting,
		bus:     b,
		logger:  logger,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the note attached to the last transition, if any.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		m.reason = reason
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		m.logger.Debug("rejected status transition",
			zap.String("from", string(m.current)),
			zap.String("to", string(to)))
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	m.logger.Info("status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason))
	m.bus.Emit(bus.SessionStatusChanged, StatusChange{From: from, To: to, Reason: reason})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Reason string `json:"reason,omitempty"`
}
