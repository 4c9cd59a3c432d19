package history

import (
	"context"
	"time"

	"github.com/roach88/incr/internal/fingerprint"
)

// Entry is the persisted state of one execution of a unit of work.
type Entry struct {
	// InvocationID identifies the execution that produced the entry.
	InvocationID string

	// Seq is the logical clock value at which the entry was stored.
	Seq int64

	// ImplementationHash identifies the code and configuration of the unit.
	ImplementationHash string

	// Inputs is the input snapshot taken before execution.
	Inputs fingerprint.Snapshot

	// Outputs is the output snapshot taken after execution.
	Outputs fingerprint.Snapshot

	// Outcome is the name of the execution outcome.
	Outcome string

	// Successful is false when the execution failed. The snapshots of a
	// failed execution are kept but never make a unit up-to-date.
	Successful bool

	// Duration is the time spent executing the unit.
	Duration time.Duration
}

// Record is an Entry together with the identity it is stored under.
type Record struct {
	Identity string
	Entry    Entry
}

// Store is the execution history boundary.
type Store interface {
	// Load returns the entry of a unit. ok is false when the unit never ran.
	Load(ctx context.Context, identity string) (entry Entry, ok bool, err error)

	// Store replaces the entry of a unit.
	Store(ctx context.Context, identity string, entry Entry) error

	// Remove deletes the entry of a unit. Removing a missing entry is a no-op.
	Remove(ctx context.Context, identity string) error

	// List returns every record ordered by identity.
	List(ctx context.Context) ([]Record, error)
}
