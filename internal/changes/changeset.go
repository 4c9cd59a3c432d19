package changes

import (
	"sort"

	"github.com/roach88/incr/internal/fingerprint"
)

// ChangeContainer is anything that can replay a sequence of changes.
type ChangeContainer interface {
	// Accept visits changes in order and reports whether it ran to completion.
	Accept(visit Visitor) bool
}

type noChanges struct{}

func (noChanges) Accept(Visitor) bool { return true }

// NoChanges is the sentinel container that reports nothing.
//
// RestrictToNonIncremental returns it when no incremental property was
// declared: in that case no change counts as non-incremental and every input
// change may be handled by the work itself.
var NoChanges ChangeContainer = noChanges{}

// HasChanges reports whether the container emits at least one change.
// Stops at the first one.
func HasChanges(c ChangeContainer) bool {
	return !c.Accept(func(FileChange) bool { return false })
}

// FingerprintChanges is the change set between two snapshots of the same
// unit. It is an immutable value; restriction builds a new one.
type FingerprintChanges struct {
	previous     fingerprint.Snapshot
	current      fingerprint.Snapshot
	title        string
	includeAdded bool
}

// NewInputFileChanges compares input snapshots. Added files are reported.
func NewInputFileChanges(previous, current fingerprint.Snapshot) *FingerprintChanges {
	return &FingerprintChanges{previous: previous, current: current, title: TitleInput, includeAdded: true}
}

// NewOutputFileChanges compares output snapshots.
// Units allowing overlapping outputs pass includeAdded=false so that files
// placed in their output locations by someone else are ignored.
func NewOutputFileChanges(previous, current fingerprint.Snapshot, includeAdded bool) *FingerprintChanges {
	return &FingerprintChanges{previous: previous, current: current, title: TitleOutput, includeAdded: includeAdded}
}

// Title returns "Input" or "Output".
func (c *FingerprintChanges) Title() string {
	return c.title
}

// Previous returns the previous snapshot.
func (c *FingerprintChanges) Previous() fingerprint.Snapshot {
	return c.previous
}

// Current returns the current snapshot.
func (c *FingerprintChanges) Current() fingerprint.Snapshot {
	return c.current
}

// Accept classifies every property in name order across the union of both
// snapshots. A property only in current is compared against an empty
// fingerprint (all added); a property only in previous against an empty
// current (all removed). The first false from visit stops the whole walk.
func (c *FingerprintChanges) Accept(visit Visitor) bool {
	for _, name := range c.propertyNames() {
		prev, _ := c.previous.Get(name)
		cur, _ := c.current.Get(name)
		if !Classify(prev, cur, name, c.title, c.includeAdded, visit) {
			return false
		}
	}
	return true
}

// AcceptProperty classifies exactly one property.
//
// The property must be present in both snapshots: a missing current
// fingerprint is ErrCodeUnknownProperty, a missing previous fingerprint is
// ErrCodeMissingPreviousFingerprint. An empty fingerprint counts as present.
func (c *FingerprintChanges) AcceptProperty(name string, visit Visitor) (bool, error) {
	cur, ok := c.current.Get(name)
	if !ok {
		return false, newUnknownPropertyError(c.title, name)
	}
	prev, ok := c.previous.Get(name)
	if !ok {
		return false, newMissingPreviousError(c.title, name)
	}
	return Classify(prev, cur, name, c.title, c.includeAdded, visit), nil
}

// RestrictToNonIncremental returns the changes of every property not named in
// incrementalNames. Neither snapshot is modified.
//
// With no incremental property declared it returns NoChanges. This is
// evaluated on every call and never cached.
func (c *FingerprintChanges) RestrictToNonIncremental(incrementalNames []string) ChangeContainer {
	if len(incrementalNames) == 0 {
		return NoChanges
	}
	return &FingerprintChanges{
		previous:     c.previous.Without(incrementalNames...),
		current:      c.current.Without(incrementalNames...),
		title:        c.title,
		includeAdded: c.includeAdded,
	}
}

// AddedProperties returns property names present only in current.
func (c *FingerprintChanges) AddedProperties() []string {
	return missingFrom(c.current, c.previous)
}

// RemovedProperties returns property names present only in previous.
func (c *FingerprintChanges) RemovedProperties() []string {
	return missingFrom(c.previous, c.current)
}

// SamePropertyNames reports whether both snapshots declare the same properties.
func (c *FingerprintChanges) SamePropertyNames() bool {
	return len(c.AddedProperties()) == 0 && len(c.RemovedProperties()) == 0
}

func (c *FingerprintChanges) propertyNames() []string {
	seen := make(map[string]bool, c.current.Len()+c.previous.Len())
	var names []string
	for _, s := range []fingerprint.Snapshot{c.previous, c.current} {
		for _, n := range s.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// missingFrom returns names of a that b does not have, sorted.
func missingFrom(a, b fingerprint.Snapshot) []string {
	var out []string
	for _, n := range a.Names() {
		if !b.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// AcceptAll is Accept under the name used by rebuild-reason collection.
func (c *FingerprintChanges) AcceptAll(visit Visitor) bool {
	return c.Accept(visit)
}
