package work

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
	"github.com/roach88/incr/internal/snapshotter"
)

// InputProperty declares one input of a unit.
type InputProperty struct {
	Name  string
	Roots FileRoots
	// Value is the handle passed to InputChanges.FileChanges. When nil the
	// property name is used.
	Value any
	// Incremental marks inputs whose changes the unit handles itself.
	Incremental bool
}

// OutputProperty declares one output of a unit.
type OutputProperty struct {
	Name  string
	Kind  TreeType
	Roots FileRoots
}

// Spec is the declaration shared by every unit variant.
type Spec struct {
	Name        string
	Inputs      []InputProperty
	Outputs     []OutputProperty
	Overlapping bool
	Cacheable   bool
	Timeout     time.Duration
}

// Base implements the parts of UnitOfWork that do not depend on what the
// unit runs. Variants embed it.
type Base struct {
	spec      Spec
	history   history.Store
	files     *snapshotter.Fingerprinter
	stopwatch Stopwatch

	// outputsValid is false after a failed cache load removed the outputs.
	outputsValid bool
}

// NewBase validates spec and returns the shared part of a unit.
func NewBase(spec Spec, store history.Store, files *snapshotter.Fingerprinter) (Base, error) {
	if spec.Name == "" {
		return Base{}, fmt.Errorf("unit name is required")
	}
	if store == nil {
		return Base{}, fmt.Errorf("unit %s: history store is required", spec.Name)
	}
	if files == nil {
		return Base{}, fmt.Errorf("unit %s: fingerprinter is required", spec.Name)
	}
	seen := make(map[string]bool)
	for _, in := range spec.Inputs {
		if in.Name == "" || seen[in.Name] {
			return Base{}, fmt.Errorf("unit %s: duplicate or empty property name %q", spec.Name, in.Name)
		}
		seen[in.Name] = true
	}
	seen = make(map[string]bool)
	for _, out := range spec.Outputs {
		if out.Name == "" || seen[out.Name] {
			return Base{}, fmt.Errorf("unit %s: duplicate or empty output name %q", spec.Name, out.Name)
		}
		seen[out.Name] = true
	}
	return Base{
		spec:         spec,
		history:      store,
		files:        files,
		stopwatch:    StartStopwatch(),
		outputsValid: true,
	}, nil
}

// Identity returns the unit name.
func (b *Base) Identity() string { return b.spec.Name }

// DisplayName returns the unit name.
func (b *Base) DisplayName() string { return b.spec.Name }

func (b *Base) Timeout() (time.Duration, bool) {
	return b.spec.Timeout, b.spec.Timeout > 0
}

func (b *Base) VisitInputProperties(visit InputPropertyVisitor) {
	for _, in := range b.spec.Inputs {
		value := in.Value
		if value == nil {
			value = in.Name
		}
		visit(in.Name, value, in.Roots, in.Incremental)
	}
}

func (b *Base) VisitOutputProperties(visit OutputPropertyVisitor) {
	for _, out := range b.spec.Outputs {
		visit(out.Name, out.Kind, out.Roots)
	}
}

func (b *Base) MarkExecutionTime() time.Duration {
	return b.stopwatch.Elapsed()
}

func (b *Base) OutputsRemovedAfterFailureToLoadFromCache() {
	b.outputsValid = false
}

// OutputsValid reports whether the outputs on disk can be trusted.
func (b *Base) OutputsValid() bool {
	return b.outputsValid
}

func (b *Base) CreateCacheHandler() CacheHandler {
	if !b.spec.Cacheable {
		return NotCacheable{}
	}
	if b.spec.Overlapping {
		return NotCacheable{Reason: "outputs overlap with other units"}
	}
	return Cacheable{}
}

func (b *Base) AllowOverlappingOutputs() bool {
	return b.spec.Overlapping
}

func (b *Base) ExecutionHistoryStore() history.Store {
	return b.history
}

func (b *Base) SnapshotAfterOutputsGenerated(ctx context.Context) (fingerprint.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return fingerprint.Snapshot{}, err
	}
	props := make(map[string][]string, len(b.spec.Outputs))
	for _, out := range b.spec.Outputs {
		props[out.Name] = out.Roots
	}
	snap, err := b.files.Snapshot(props)
	if err != nil {
		return fingerprint.Snapshot{}, fmt.Errorf("snapshot outputs of %s: %w", b.spec.Name, err)
	}
	b.outputsValid = true
	return snap, nil
}

// Files returns the fingerprinter of the unit's workspace.
func (b *Base) Files() *snapshotter.Fingerprinter {
	return b.files
}

// Spec returns the unit declaration.
func (b *Base) Spec() Spec {
	return b.spec
}

// setStopwatch replaces the stopwatch; used by tests.
func (b *Base) setStopwatch(s Stopwatch) {
	b.stopwatch = s
}
