package monitor

import "fmt"

// RunState is the job-level lifecycle.
type RunState int

const (
	StateIdle RunState = iota
	StateAssembling
	StatePlaying
	StateDraining
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAssembling:
		return "assembling"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool { return s == StateCompleted || s == StateFailed }

var forward = map[RunState]RunState{
	StateIdle:       StateAssembling,
	StateAssembling: StatePlaying,
	StatePlaying:    StateDraining,
	StateDraining:   StateCompleted,
}

// canTransition encodes the strict order. Only Failed may be entered from
// any non-terminal state.
func canTransition(from, to RunState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}
