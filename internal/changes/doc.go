// Package changes turns two fingerprint snapshots into structured file
// changes and exposes them to a unit of work during execution.
//
// Three layers, leaves first:
//   - Classify compares one property's previous and current fingerprints
//   - FingerprintChanges aggregates classification across all properties
//   - InputChanges answers "what changed for this parameter value" queries
//
// Everything here is a pure read over immutable snapshots: no I/O, no
// locking, no caching between calls. Traversal uses a Visitor that may stop
// the walk after any emitted change.
package changes
