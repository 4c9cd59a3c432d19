package report

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/incr/internal/fingerprint"
)

// DefaultContext is the number of unchanged lines around each hunk.
const DefaultContext = 3

// signatureWidth is how much of each signature a diff line shows.
const signatureWidth = 12

// FingerprintLines renders a snapshot as one "property path signature" line
// per file, in property then path order.
func FingerprintLines(s fingerprint.Snapshot) []string {
	var lines []string
	for _, name := range s.Names() {
		fp, _ := s.Get(name)
		if fp.IsEmpty() {
			lines = append(lines, fmt.Sprintf("%s (empty)\n", name))
			continue
		}
		for _, e := range fp.Entries() {
			sig := e.Signature.String()
			if len(sig) > signatureWidth {
				sig = sig[:signatureWidth]
			}
			lines = append(lines, fmt.Sprintf("%s %s %s\n", name, e.Path, sig))
		}
	}
	return lines
}

// UnifiedDiff diffs the stored and current snapshots of a unit. It returns
// "" when they render identically.
func UnifiedDiff(unit string, previous, current fingerprint.Snapshot, context int) (string, error) {
	if context <= 0 {
		context = DefaultContext
	}
	u := difflib.UnifiedDiff{
		A:        FingerprintLines(previous),
		B:        FingerprintLines(current),
		FromFile: unit + " (history)",
		ToFile:   unit + " (workspace)",
		Context:  context,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", unit, err)
	}
	return s, nil
}
