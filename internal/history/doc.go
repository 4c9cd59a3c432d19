// Package history persists the outcome of the last execution of every unit
// of work.
//
// One entry is kept per unit identity. It records the input and output
// snapshots taken around the execution, the implementation hash and whether
// the execution succeeded. The next run of the unit loads the entry and
// diffs its snapshots against the current ones.
//
// # Stores
//
//   - SQLiteStore: durable, single file, WAL mode
//   - MemoryStore: process-local, used by tests and dry runs
//   - CachedStore: LRU read-through wrapper around another Store
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Snapshots are stored as canonical JSON so that identical snapshots
// produce identical rows.
package history
