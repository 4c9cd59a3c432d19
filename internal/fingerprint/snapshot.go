package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is an immutable mapping from property name to Fingerprint.
// Property names are unique by construction and iterated in sorted order.
//
// One snapshot represents the previous execution (loaded from history) and
// one the current execution (computed before the work runs).
type Snapshot struct {
	props map[string]Fingerprint
	names []string
}

// EmptySnapshot returns a snapshot without properties.
func EmptySnapshot() Snapshot {
	return Snapshot{}
}

// NewSnapshot builds a Snapshot from a property map.
// The map is copied; later changes to it are not observed.
func NewSnapshot(props map[string]Fingerprint) Snapshot {
	if len(props) == 0 {
		return Snapshot{}
	}
	s := Snapshot{
		props: make(map[string]Fingerprint, len(props)),
		names: make([]string, 0, len(props)),
	}
	for name, fp := range props {
		s.props[name] = fp
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// Len returns the number of properties.
func (s Snapshot) Len() int {
	return len(s.names)
}

// Names returns the property names in sorted order.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get returns the fingerprint of a property.
func (s Snapshot) Get(name string) (Fingerprint, bool) {
	fp, ok := s.props[name]
	return fp, ok
}

// Has reports whether the property exists.
func (s Snapshot) Has(name string) bool {
	_, ok := s.props[name]
	return ok
}

// Without returns a new snapshot with the named properties removed.
// The receiver is not modified.
func (s Snapshot) Without(names ...string) Snapshot {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := make(map[string]Fingerprint, len(s.props))
	for name, fp := range s.props {
		if !drop[name] {
			kept[name] = fp
		}
	}
	return NewSnapshot(kept)
}

// Equal reports whether both snapshots have the same properties with equal fingerprints.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for i, name := range s.names {
		if other.names[i] != name {
			return false
		}
		if !s.props[name].Equal(other.props[name]) {
			return false
		}
	}
	return true
}

// FileCount returns the total number of entries across all properties.
func (s Snapshot) FileCount() int {
	n := 0
	for _, fp := range s.props {
		n += fp.Len()
	}
	return n
}

func (s Snapshot) toMap() map[string]any {
	m := make(map[string]any, len(s.props))
	for name, fp := range s.props {
		m[name] = fp.toMap()
	}
	return m
}

// MarshalJSON encodes the snapshot as canonical JSON:
// {"property":{"path":"signature",...},...}
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(s.toMap())
}

// UnmarshalJSON decodes the canonical JSON form.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	props := make(map[string]Fingerprint, len(raw))
	for name, files := range raw {
		sigs := make(map[string]Signature, len(files))
		for p, sig := range files {
			sigs[p] = Signature(sig)
		}
		fp, err := New(sigs)
		if err != nil {
			return fmt.Errorf("unmarshal snapshot property %q: %w", name, err)
		}
		props[name] = fp
	}
	*s = NewSnapshot(props)
	return nil
}
