// Package switcher holds the edge-triggered math/prose state machine.
package switcher

import "sync"

// Language is the keyboard layout a context calls for.
type Language int

const (
	// Hebrew is used for prose outside math.
	Hebrew Language = iota
	// English is used inside math.
	English
)

// String returns the language name.
func (l Language) String() string {
	switch l {
	case English:
		return "english"
	case Hebrew:
		return "hebrew"
	default:
		return "unknown"
	}
}

// LanguageFor maps a classification to its language.
func LanguageFor(insideMath bool) Language {
	if insideMath {
		return English
	}
	return Hebrew
}

// Transition is a committed change of context.
type Transition struct {
	From, To bool
}

// Language returns the language to switch to.
func (t Transition) Language() Language {
	return LanguageFor(t.To)
}

// Machine tracks whether the caret was last classified inside math.
//
// Observe commits a new state before returning the transition, so a caller
// dispatching the switch asynchronously never sees the old state again.
// Failed dispatches are not rolled back. The zero value starts outside math.
type Machine struct {
	mu     sync.Mutex
	inside bool
	count  uint64
}

// New creates a machine in the initial outside-math state.
func New() *Machine {
	return &Machine{}
}

// Observe records a classification. It returns the transition and true when
// the state changed, or false when c equals the committed state.
func (m *Machine) Observe(c bool) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c == m.inside {
		return Transition{}, false
	}
	t := Transition{From: m.inside, To: c}
	m.inside = c
	m.count++
	return t, true
}

// Inside returns the committed state.
func (m *Machine) Inside() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inside
}

// Transitions returns how many transitions have been committed.
func (m *Machine) Transitions() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
