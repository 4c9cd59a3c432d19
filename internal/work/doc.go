// Package work defines the unit of work: the contract between the executor
// and anything it can run incrementally.
//
// A unit declares input and output properties by name and file roots,
// decides its cache eligibility and reports which outputs it changed. The
// executor snapshots the declared roots, works out what changed since the
// last run and hands the unit an InputChanges view while it executes.
//
// Two variants ship with the package:
//
//   - CommandTask runs a shell command with an allowlisted environment
//   - Transform runs a Go function over one input artifact
//
// A unit value is created per execution; its stopwatch and cache-validity
// flag must not be shared across runs.
package work
