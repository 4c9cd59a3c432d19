package work

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/history"
)

// TreeType describes the shape of an output property.
type TreeType int

const (
	// FileTree is a single file.
	FileTree TreeType = iota
	// DirectoryTree is a directory and everything below it.
	DirectoryTree
)

func (t TreeType) String() string {
	if t == DirectoryTree {
		return "DIRECTORY"
	}
	return "FILE"
}

// FileRoots are the declared locations of a property, relative to the
// workspace root.
type FileRoots []string

// InputPropertyVisitor receives each input property in declaration order.
// value is what the unit passes to InputChanges.FileChanges to query the
// property; incremental marks properties whose changes the unit handles.
type InputPropertyVisitor func(name string, value any, roots FileRoots, incremental bool)

// OutputPropertyVisitor receives each output property in declaration order.
type OutputPropertyVisitor func(name string, kind TreeType, roots FileRoots)

// WorkResult is what the unit body reports.
type WorkResult int

const (
	// DidWork means the body produced or updated outputs.
	DidWork WorkResult = iota + 1
	// DidNoWork means the body ran but had nothing to do.
	DidNoWork
)

// ExecutionContext is passed to UnitOfWork.Execute.
type ExecutionContext struct {
	// InputChanges answers "what changed for property P".
	InputChanges changes.InputChanges

	// FirstExecution is true when no usable history exists for the unit.
	FirstExecution bool

	// InvocationID identifies this execution in history and logs.
	InvocationID string

	// Logger is scoped to the unit.
	Logger *slog.Logger
}

// UnitOfWork is anything the executor can run incrementally.
type UnitOfWork interface {
	// Identity is the stable key under which history is stored.
	Identity() string

	// DisplayName is used in logs and reports.
	DisplayName() string

	// Execute runs the body.
	Execute(ctx context.Context, ec ExecutionContext) (WorkResult, error)

	// Timeout returns the execution timeout, if any.
	Timeout() (time.Duration, bool)

	// VisitInputProperties enumerates declared inputs in declaration order.
	VisitInputProperties(visit InputPropertyVisitor)

	// VisitOutputProperties enumerates declared outputs in declaration order.
	VisitOutputProperties(visit OutputPropertyVisitor)

	// MarkExecutionTime returns the time elapsed since the unit was created.
	MarkExecutionTime() time.Duration

	// OutputsRemovedAfterFailureToLoadFromCache is called when a cache load
	// failed partway and the outputs were cleaned up.
	OutputsRemovedAfterFailureToLoadFromCache()

	// CreateCacheHandler decides cache load and store eligibility.
	CreateCacheHandler() CacheHandler

	// ChangingOutputs returns the paths this execution touched. ok is false
	// when the unit cannot tell and every tracked file must be invalidated.
	ChangingOutputs() (paths []string, ok bool)

	// AllowOverlappingOutputs reports whether files placed in the output
	// locations by someone else are ignored during change detection.
	AllowOverlappingOutputs() bool

	// ExecutionHistoryStore is where the unit's history lives.
	ExecutionHistoryStore() history.Store

	// SnapshotAfterOutputsGenerated fingerprints the outputs once the body
	// has produced its files.
	SnapshotAfterOutputsGenerated(ctx context.Context) (fingerprint.Snapshot, error)
}

// ImplementationHasher is implemented by units whose definition (command,
// environment, code version) contributes to up-to-date checks and cache keys.
type ImplementationHasher interface {
	ImplementationHash() (string, error)
}

// ExecutionOutcome is the result of one executor run of a unit.
type ExecutionOutcome string

const (
	UpToDate                 ExecutionOutcome = "UP_TO_DATE"
	FromCache                ExecutionOutcome = "FROM_CACHE"
	ExecutedIncrementally    ExecutionOutcome = "EXECUTED_INCREMENTALLY"
	ExecutedNonIncrementally ExecutionOutcome = "EXECUTED_NON_INCREMENTALLY"
)

// Executed reports whether the unit body ran.
func (o ExecutionOutcome) Executed() bool {
	return o == ExecutedIncrementally || o == ExecutedNonIncrementally
}
