package ttsengine

import "fmt"

// State is a step of a single synthesis request.
type State int

const (
	// StateIdle is the state before anything was attempted.
	StateIdle State = iota

	// StateRequestingPrimary means the first provider call is in flight.
	StateRequestingPrimary

	// StateRequestingFallback means the standard provider is being asked
	// after the primary attempt failed.
	StateRequestingFallback

	// StateSucceeded is terminal: audio is available, or there was nothing
	// to speak.
	StateSucceeded

	// StateFailed is terminal: every permitted attempt failed.
	StateFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPrimary:
		return "requesting_primary"
	case StateRequestingFallback:
		return "requesting_fallback"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Event drives the request state machine.
type Event int

const (
	// EventStart begins the primary attempt.
	EventStart Event = iota

	// EventSkip ends a request with nothing to synthesize.
	EventSkip

	// EventSuccess reports that the current attempt produced audio.
	EventSuccess

	// EventFailure reports that the current attempt failed and another
	// attempt is permitted.
	EventFailure

	// EventExhausted reports that the current attempt failed and no other
	// attempt is permitted.
	EventExhausted

	// EventCancel reports that the caller gave up on the request.
	EventCancel
)

// String returns the event name used in logs.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSkip:
		return "skip"
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	case EventExhausted:
		return "exhausted"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// transitions is the complete table. There is no edge out of
// StateRequestingFallback other than to a terminal state, so a request can
// never make more than two provider calls.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateRequestingPrimary,
		EventSkip:  StateSucceeded,
	},
	StateRequestingPrimary: {
		EventSuccess:   StateSucceeded,
		EventFailure:   StateRequestingFallback,
		EventExhausted: StateFailed,
		EventCancel:    StateFailed,
	},
	StateRequestingFallback: {
		EventSuccess:   StateSucceeded,
		EventFailure:   StateFailed,
		EventExhausted: StateFailed,
		EventCancel:    StateFailed,
	},
}

// Transition returns the state reached from s on e, and false when the table
// has no such edge.
func Transition(s State, e Event) (State, bool) {
	next, ok := transitions[s][e]
	return next, ok
}

// machine tracks one request through the table and remembers its path.
type machine struct {
	state State
	path  []State
}

func newMachine() *machine {
	return &machine{state: StateIdle, path: []State{StateIdle}}
}

// fire applies e. An edge missing from the table is a programming error in
// the engine and is reported rather than silently ignored.
func (m *machine) fire(e Event) error {
	next, ok := Transition(m.state, e)
	if !ok {
		return fmt.Errorf("ttsengine: invalid transition %s --%s-->", m.state, e)
	}
	m.state = next
	m.path = append(m.path, next)
	return nil
}
