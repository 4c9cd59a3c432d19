package fingerprint

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Signature is an opaque content hash of a single file.
// Two files are considered identical iff their signatures are equal.
type Signature string

// String returns the string form of the signature.
func (s Signature) String() string { return string(s) }

// ErrInvalidPath is returned for paths that are not valid UTF-8. Such
// paths cannot be stored in history without changing.
var ErrInvalidPath = errors.New("path is not valid UTF-8")

// Entry is one (path, signature) pair of a Fingerprint.
type Entry struct {
	Path      string    `json:"path"`
	Signature Signature `json:"signature"`
}

// Fingerprint is an immutable, path-sorted mapping from normalized logical
// path to content signature.
//
// The zero value is the empty fingerprint.
type Fingerprint struct {
	entries []Entry
}

// Empty returns the empty fingerprint.
func Empty() Fingerprint {
	return Fingerprint{}
}

// New builds a Fingerprint from a path -> signature map.
// Paths are normalized with NormalizePath; two paths normalizing to the same
// value are rejected.
func New(files map[string]Signature) (Fingerprint, error) {
	entries := make([]Entry, 0, len(files))
	for p, sig := range files {
		entries = append(entries, Entry{Path: p, Signature: sig})
	}
	return FromEntries(entries)
}

// MustNew is like New but panics on error.
// Use only in tests or when paths are known to be unique.
func MustNew(files map[string]Signature) Fingerprint {
	f, err := New(files)
	if err != nil {
		panic(err)
	}
	return f
}

// FromEntries builds a Fingerprint from entries in any order.
// The input slice is not retained.
func FromEntries(in []Entry) (Fingerprint, error) {
	if len(in) == 0 {
		return Fingerprint{}, nil
	}
	entries := make([]Entry, len(in))
	for i, e := range in {
		if !utf8.ValidString(e.Path) {
			return Fingerprint{}, fmt.Errorf("%w: %q", ErrInvalidPath, e.Path)
		}
		entries[i] = Entry{Path: NormalizePath(e.Path), Signature: e.Signature}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	for i := 1; i < len(entries); i++ {
		if entries[i].Path == entries[i-1].Path {
			return Fingerprint{}, fmt.Errorf("duplicate path in fingerprint: %q", entries[i].Path)
		}
	}
	return Fingerprint{entries: entries}, nil
}

// Len returns the number of entries.
func (f Fingerprint) Len() int {
	return len(f.entries)
}

// IsEmpty reports whether the fingerprint has no entries.
func (f Fingerprint) IsEmpty() bool {
	return len(f.entries) == 0
}

// Entries returns a copy of the entries in path order.
func (f Fingerprint) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// At returns the i-th entry in path order.
func (f Fingerprint) At(i int) Entry {
	return f.entries[i]
}

// Lookup returns the signature recorded for path.
func (f Fingerprint) Lookup(path string) (Signature, bool) {
	path = NormalizePath(path)
	i := sort.Search(len(f.entries), func(i int) bool { return f.entries[i].Path >= path })
	if i < len(f.entries) && f.entries[i].Path == path {
		return f.entries[i].Signature, true
	}
	return "", false
}

// Paths returns the paths in sorted order.
func (f Fingerprint) Paths() []string {
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Path
	}
	return out
}

// Equal reports whether both fingerprints hold the same paths and signatures.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f.entries) != len(other.entries) {
		return false
	}
	for i := range f.entries {
		if f.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}

// Filter returns a new fingerprint holding the entries keep accepts.
func (f Fingerprint) Filter(keep func(Entry) bool) Fingerprint {
	var out []Entry
	for _, e := range f.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return Fingerprint{entries: out}
}

// toMap converts to the canonical JSON object form.
func (f Fingerprint) toMap() map[string]any {
	m := make(map[string]any, len(f.entries))
	for _, e := range f.entries {
		m[e.Path] = string(e.Signature)
	}
	return m
}
