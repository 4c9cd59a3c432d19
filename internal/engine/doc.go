// Package engine runs units of work incrementally.
//
// The Executor takes one unit through its lifecycle:
//
//	Pending -> SnapshottingInputs -> Executing -> SnapshottingOutputs -> Completed
//
// skipping straight to Completed when the unit is up-to-date or its outputs
// were restored from the build cache. Any step may end in Failed.
//
// Before executing, the Executor compares the unit's current input and
// output fingerprints with the last successful execution recorded in the
// unit's history store. The comparison yields the rebuild reasons and
// decides whether the unit body receives only the changes since that
// execution or every input file as added.
//
// A Session feeds units to an Executor in submission order from a single
// goroutine. Units never run concurrently.
//
// History entries are stamped from a monotonic logical Clock; wall-clock
// time is only used for execution durations.
package engine
