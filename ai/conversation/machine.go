// Package conversation tracks whether the assistant is in a conversation and
// coordinates speech playback with the listeners.
package conversation

import (
	"log/slog"
	"sync"
	"time"
)

// State of the conversation.
type State int

const (
	// Idle waits for the wake word.
	Idle State = iota
	// Active listens for follow-ups without the wake word.
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is a state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Observer is told about every transition, after the state has changed.
type Observer func(Transition)

// Machine is the two-state conversation machine. It is safe for concurrent use.
type Machine struct {
	mu        sync.RWMutex
	state     State
	observers []Observer
	now       func() time.Time
}

func NewMachine() *Machine {
	return &Machine{state: Idle, now: time.Now}
}

// Observe registers an observer.
func (m *Machine) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) InConversation() bool {
	return m.State() == Active
}

// Activate enters Active, typically on the wake word. It reports whether the state changed.
func (m *Machine) Activate(reason string) bool {
	return m.transition(Active, reason)
}

// End returns to Idle. It reports whether the state changed.
func (m *Machine) End(reason string) bool {
	return m.transition(Idle, reason)
}

func (m *Machine) transition(to State, reason string) bool {
	m.mu.Lock()
	if m.state == to {
		m.mu.Unlock()
		return false
	}
	t := Transition{From: m.state, To: to, Reason: reason, At: m.now()}
	m.state = to
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	slog.Debug("conversation state changed", "from", t.From, "to", t.To, "reason", reason)
	for _, o := range observers {
		o(t)
	}
	return true
}
