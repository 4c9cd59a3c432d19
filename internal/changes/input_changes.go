package changes

import (
	"github.com/roach88/incr/internal/fingerprint"
)

// InputChanges is what a unit of work sees of its input changes during
// execution. Implementations are read-only.
type InputChanges interface {
	// IsIncremental reports whether only the changes since the last
	// successful run are reported. When false, every input file is Added.
	IsIncremental() bool

	// FileChanges returns the changes of the incremental input property
	// whose declared value is value.
	FileChanges(value any) ([]FileChange, error)

	// AllFileChanges returns the changes of every input property.
	AllFileChanges() []FileChange
}

// IncrementalInputChanges reports the real differences between the previous
// and current input snapshots.
type IncrementalInputChanges struct {
	changes *FingerprintChanges
	index   *PropertyIndex
}

// NewIncrementalInputChanges wraps an input change set.
func NewIncrementalInputChanges(changes *FingerprintChanges, index *PropertyIndex) *IncrementalInputChanges {
	return &IncrementalInputChanges{changes: changes, index: index}
}

// IsIncremental always reports true.
func (c *IncrementalInputChanges) IsIncremental() bool {
	return true
}

// FileChanges resolves value to its property name and returns that
// property's changes in path order.
func (c *IncrementalInputChanges) FileChanges(value any) ([]FileChange, error) {
	name, err := c.index.Resolve(value)
	if err != nil {
		return nil, err
	}
	var col Collector
	if _, err := c.changes.AcceptProperty(name, col.Visit); err != nil {
		return nil, err
	}
	return col.Changes(), nil
}

// AllFileChanges returns every change across all input properties.
func (c *IncrementalInputChanges) AllFileChanges() []FileChange {
	var col Collector
	c.changes.Accept(col.Visit)
	return col.Changes()
}

// NonIncrementalInputChanges reports every current input file as Added.
// Used on a first run and whenever a non-incremental change was detected.
type NonIncrementalInputChanges struct {
	current fingerprint.Snapshot
	index   *PropertyIndex
}

// NewNonIncrementalInputChanges wraps the current input snapshot.
func NewNonIncrementalInputChanges(current fingerprint.Snapshot, index *PropertyIndex) *NonIncrementalInputChanges {
	return &NonIncrementalInputChanges{current: current, index: index}
}

// IsIncremental always reports false.
func (c *NonIncrementalInputChanges) IsIncremental() bool {
	return false
}

// FileChanges returns every file of the property holding value as Added.
func (c *NonIncrementalInputChanges) FileChanges(value any) ([]FileChange, error) {
	name, err := c.index.Resolve(value)
	if err != nil {
		return nil, err
	}
	fp, ok := c.current.Get(name)
	if !ok {
		return nil, newUnknownPropertyError(TitleInput, name)
	}
	var col Collector
	Classify(fingerprint.Empty(), fp, name, TitleInput, true, col.Visit)
	return col.Changes(), nil
}

// AllFileChanges returns every current input file as Added.
func (c *NonIncrementalInputChanges) AllFileChanges() []FileChange {
	var col Collector
	for _, name := range c.current.Names() {
		fp, _ := c.current.Get(name)
		Classify(fingerprint.Empty(), fp, name, TitleInput, true, col.Visit)
	}
	return col.Changes()
}
