package fingerprint

// FilterOverlapping restricts an after-execution output snapshot to the files
// a unit produced itself, for units sharing their output locations.
//
// A file is kept when it was part of the unit's previous output snapshot, or
// when it was added or modified between beforeExecution and afterExecution.
// Files that existed before execution, untouched, and were never recorded as
// this unit's output belong to someone else and are dropped.
func FilterOverlapping(afterExecution, beforeExecution, previous Snapshot) Snapshot {
	filtered := make(map[string]Fingerprint, afterExecution.Len())
	for _, name := range afterExecution.Names() {
		after, _ := afterExecution.Get(name)
		before, _ := beforeExecution.Get(name)
		prev, _ := previous.Get(name)
		filtered[name] = after.Filter(func(e Entry) bool {
			if _, ok := prev.Lookup(e.Path); ok {
				return true
			}
			sig, existed := before.Lookup(e.Path)
			return !existed || sig != e.Signature
		})
	}
	return NewSnapshot(filtered)
}
