package changes

import "fmt"

// ChangeKind classifies a single file change.
type ChangeKind int

const (
	// Added means the path is present only in the current fingerprint.
	Added ChangeKind = iota + 1
	// Removed means the path is present only in the previous fingerprint.
	Removed
	// Modified means the path is present in both with different signatures.
	Modified
)

// String returns the upper-case name of the kind.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	case Modified:
		return "MODIFIED"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ChangeKind) UnmarshalText(text []byte) error {
	for _, kind := range []ChangeKind{Added, Removed, Modified} {
		if string(text) == kind.String() {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown change kind %q", text)
}

// FileChange is one immutable change record produced while diffing.
type FileChange struct {
	Path     string     `json:"path"`
	Kind     ChangeKind `json:"kind"`
	Property string     `json:"property"`
	// Title names the side being compared ("Input" or "Output").
	Title string `json:"-"`
}

// Message renders the change as a human-readable rebuild reason.
func (c FileChange) Message() string {
	var what string
	switch c.Kind {
	case Added:
		what = "has been added"
	case Removed:
		what = "has been removed"
	default:
		what = "has changed"
	}
	title := c.Title
	if title == "" {
		title = TitleInput
	}
	return fmt.Sprintf("%s property '%s' file %s %s.", title, c.Property, c.Path, what)
}

// Inverse returns the change as seen when previous and current are swapped.
func (c FileChange) Inverse() FileChange {
	switch c.Kind {
	case Added:
		c.Kind = Removed
	case Removed:
		c.Kind = Added
	}
	return c
}

// Visitor receives changes in deterministic order.
// Returning false stops the traversal immediately.
type Visitor func(FileChange) bool

// Collector accumulates every visited change.
type Collector struct {
	changes []FileChange
}

// Visit records the change and asks for more.
func (c *Collector) Visit(change FileChange) bool {
	c.changes = append(c.changes, change)
	return true
}

// Changes returns the collected changes. Never nil.
func (c *Collector) Changes() []FileChange {
	if c.changes == nil {
		return []FileChange{}
	}
	return c.changes
}

// LimitingCollector accumulates at most Max changes and then stops the walk.
type LimitingCollector struct {
	Max     int
	changes []FileChange
}

// Visit records the change; it reports false once Max changes were seen.
func (c *LimitingCollector) Visit(change FileChange) bool {
	if len(c.changes) >= c.Max {
		return false
	}
	c.changes = append(c.changes, change)
	return len(c.changes) < c.Max
}

// Changes returns the collected changes. Never nil.
func (c *LimitingCollector) Changes() []FileChange {
	if c.changes == nil {
		return []FileChange{}
	}
	return c.changes
}
