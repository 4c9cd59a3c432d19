// Package fingerprint provides the immutable content-fingerprint types the
// incremental execution core compares across runs.
//
// This package imports nothing internal. Every other internal package builds
// on it, so it stays the foundational layer.
//
// Key constraints:
//   - Fingerprint entries are always sorted by normalized path
//   - Snapshot properties are always iterated in sorted name order
//   - Values are never mutated after construction; filtering returns new values
//   - Paths are NFC normalized and slash separated before they are compared
//   - Persisted form is RFC 8785 canonical JSON, hashed with domain separation
package fingerprint
