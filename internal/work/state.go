package work

import "fmt"

// State is the execution state of one unit run.
type State string

const (
	Pending             State = "PENDING"
	SnapshottingInputs  State = "SNAPSHOTTING_INPUTS"
	Executing           State = "EXECUTING"
	SnapshottingOutputs State = "SNAPSHOTTING_OUTPUTS"
	Completed           State = "COMPLETED"
	Failed              State = "FAILED"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s State) bool {
	return s == Completed || s == Failed
}

// Lifecycle tracks the validated state transitions of one unit run.
// The zero value is not usable; use NewLifecycle.
type Lifecycle struct {
	unit  string
	state State
	trace []State
}

// NewLifecycle returns a lifecycle in the Pending state.
func NewLifecycle(unit string) *Lifecycle {
	return &Lifecycle{unit: unit, state: Pending, trace: []State{Pending}}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Trace returns every state visited, in order.
func (l *Lifecycle) Trace() []State {
	out := make([]State, len(l.trace))
	copy(out, l.trace)
	return out
}

// Transition moves to the next state if the transition is allowed.
func (l *Lifecycle) Transition(to State) error {
	if !isAllowedTransition(l.state, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", l.unit, l.state, to)
	}
	l.state = to
	l.trace = append(l.trace, to)
	return nil
}

// Fail moves any non-terminal state to Failed. Failing a failed run is a no-op.
func (l *Lifecycle) Fail() {
	if IsTerminal(l.state) {
		return
	}
	l.state = Failed
	l.trace = append(l.trace, Failed)
}

func isAllowedTransition(from, to State) bool {
	if to == Failed {
		return !IsTerminal(from)
	}
	switch from {
	case Pending:
		return to == SnapshottingInputs
	case SnapshottingInputs:
		// Completed directly when up-to-date or loaded from cache.
		return to == Executing || to == Completed
	case Executing:
		return to == SnapshottingOutputs
	case SnapshottingOutputs:
		return to == Completed
	default:
		return false
	}
}
