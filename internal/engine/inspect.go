package engine

import (
	"context"
	"fmt"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/work"
)

// Rebuild reason messages that are not file changes.
const (
	ReasonNoHistory             = "No history is available."
	ReasonPreviousFailed        = "Task has failed previously."
	ReasonImplementationChanged = "Implementation has changed."
)

// Inspection is everything known about a unit before it executes.
type Inspection struct {
	// Previous is the stored entry; valid only when HasPrevious.
	Previous    history.Entry
	HasPrevious bool

	Implementation string

	// Inputs is the current input snapshot.
	Inputs fingerprint.Snapshot

	// OutputsBefore is the output snapshot taken before execution.
	OutputsBefore fingerprint.Snapshot

	// IncrementalProperties are the names of inputs the unit handles
	// incrementally, in declaration order.
	IncrementalProperties []string

	// Reasons why the unit is out of date, at most MaxReasons.
	// Empty means up-to-date.
	Reasons []string

	index         *changes.PropertyIndex
	inputChanges  *changes.FingerprintChanges
	outputChanges *changes.FingerprintChanges
}

// UpToDate reports whether the unit can be skipped.
func (in *Inspection) UpToDate() bool {
	return len(in.Reasons) == 0
}

// Usable reports whether the previous execution can serve as a baseline.
func (in *Inspection) Usable() bool {
	return in.HasPrevious && in.Previous.Successful
}

// InputChanges returns the change set of the inputs, or nil when there is
// no usable history.
func (in *Inspection) InputChanges() *changes.FingerprintChanges {
	return in.inputChanges
}

// CanExecuteIncrementally reports whether only the changes since the last
// run need to be handled: the history is usable, the implementation and
// declared properties are unchanged, no output changed and every input
// change is on an incremental property.
func (in *Inspection) CanExecuteIncrementally() bool {
	if !in.Usable() || in.Previous.ImplementationHash != in.Implementation {
		return false
	}
	if !in.inputChanges.SamePropertyNames() || !in.outputChanges.SamePropertyNames() {
		return false
	}
	if changes.HasChanges(in.outputChanges) {
		return false
	}
	return !changes.HasChanges(in.inputChanges.RestrictToNonIncremental(in.IncrementalProperties))
}

// NewInputChanges builds the view handed to the unit body.
func (in *Inspection) NewInputChanges(incremental bool) changes.InputChanges {
	if incremental {
		return changes.NewIncrementalInputChanges(in.inputChanges, in.index)
	}
	return changes.NewNonIncrementalInputChanges(in.Inputs, in.index)
}

// Inspect loads the unit's history, snapshots its inputs and outputs and
// collects the reasons it is out of date. Nothing is executed or stored.
func (e *Executor) Inspect(ctx context.Context, unit work.UnitOfWork) (*Inspection, error) {
	in := &Inspection{index: changes.NewPropertyIndex()}

	store := unit.ExecutionHistoryStore()
	prev, ok, err := store.Load(ctx, unit.Identity())
	if err != nil {
		return nil, newExecutionError(ErrCodeHistoryFailed, unit.Identity(), "load history", err)
	}
	in.Previous, in.HasPrevious = prev, ok

	if h, ok := unit.(work.ImplementationHasher); ok {
		if in.Implementation, err = h.ImplementationHash(); err != nil {
			return nil, fmt.Errorf("implementation hash of %s: %w", unit.Identity(), err)
		}
	}

	inputRoots := make(map[string][]string)
	var indexErr error
	unit.VisitInputProperties(func(name string, value any, roots work.FileRoots, incremental bool) {
		inputRoots[name] = roots
		if !incremental {
			return
		}
		in.IncrementalProperties = append(in.IncrementalProperties, name)
		if err := in.index.Add(name, value); err != nil && indexErr == nil {
			indexErr = err
		}
	})
	if indexErr != nil {
		return nil, indexErr
	}

	outputRoots := make(map[string][]string)
	unit.VisitOutputProperties(func(name string, _ work.TreeType, roots work.FileRoots) {
		outputRoots[name] = roots
	})

	if in.Inputs, err = e.files.Snapshot(inputRoots); err != nil {
		return nil, newExecutionError(ErrCodeSnapshotFailed, unit.Identity(), "snapshot inputs", err)
	}
	if in.OutputsBefore, err = e.files.Snapshot(outputRoots); err != nil {
		return nil, newExecutionError(ErrCodeSnapshotFailed, unit.Identity(), "snapshot outputs", err)
	}

	if in.Usable() {
		in.inputChanges = changes.NewInputFileChanges(in.Previous.Inputs, in.Inputs)
		in.outputChanges = changes.NewOutputFileChanges(in.Previous.Outputs, in.OutputsBefore, !unit.AllowOverlappingOutputs())
	}
	in.Reasons = e.collectReasons(in)
	return in, nil
}

// reasonCollector keeps at most max messages.
type reasonCollector struct {
	max     int
	reasons []string
}

func (r *reasonCollector) full() bool {
	return len(r.reasons) >= r.max
}

func (r *reasonCollector) add(msg string) {
	if !r.full() {
		r.reasons = append(r.reasons, msg)
	}
}

func (r *reasonCollector) addChanges(c changes.ChangeContainer) {
	if r.full() {
		return
	}
	col := &changes.LimitingCollector{Max: r.max - len(r.reasons)}
	c.Accept(col.Visit)
	for _, fc := range col.Changes() {
		r.add(fc.Message())
	}
}

func (r *reasonCollector) addProperties(title string, c *changes.FingerprintChanges) {
	for _, name := range c.AddedProperties() {
		r.add(fmt.Sprintf("%s property '%s' has been added.", title, name))
	}
	for _, name := range c.RemovedProperties() {
		r.add(fmt.Sprintf("%s property '%s' has been removed.", title, name))
	}
}

func (e *Executor) collectReasons(in *Inspection) []string {
	r := &reasonCollector{max: e.maxReasons}
	switch {
	case !in.HasPrevious:
		r.add(ReasonNoHistory)
	case !in.Previous.Successful:
		r.add(ReasonPreviousFailed)
	default:
		if in.Previous.ImplementationHash != in.Implementation {
			r.add(ReasonImplementationChanged)
		}
		r.addProperties(changes.TitleInput, in.inputChanges)
		r.addProperties(changes.TitleOutput, in.outputChanges)
		r.addChanges(in.inputChanges)
		r.addChanges(in.outputChanges)
	}
	return r.reasons
}
