// Package status tracks the bot's connection lifecycle and maps it to the
// health reported on the control socket.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wppbot/internal/bus"
)

// State represents a bot runtime state.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Stopping     State = "STOPPING"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      {AuthRequired, Connecting, Stopping, Error},
	AuthRequired: {Connecting, Stopping, Error},
	Connecting:   {Ready, AuthRequired, Reconnecting, Stopping, Error},
	Ready:        {Reconnecting, AuthRequired, Stopping, Error},
	Reconnecting: {Connecting, Ready, AuthRequired, Stopping, Error},
	Error:        {Booting, Stopping},
	Stopping:     {},
}

// Serving reports whether the bot is processing messages in state s.
func (s State) Serving() bool { return s == Ready }

// Machine tracks and enforces bot runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	}
	return nil
}

// Advance attempts each transition of path in order, skipping steps that
// are already current or not allowed, and reports whether the machine ended
// in the last state of path. Transport callbacks use it because they can
// arrive in several states (Connected after pairing or after a reconnect).
func (m *Machine) Advance(path ...State) error {
	if len(path) == 0 {
		return nil
	}
	for _, s := range path {
		if m.Current() != s {
			_ = m.Transition(s)
		}
	}
	if last := path[len(path)-1]; m.Current() != last {
		return fmt.Errorf("advance to %s: stuck in %s", last, m.Current())
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
