package changes

import "github.com/roach88/incr/internal/fingerprint"

// Titles used in change records and rebuild messages.
const (
	TitleInput  = "Input"
	TitleOutput = "Output"
)

// Classify compares one property's previous and current fingerprints and
// emits a change for every differing path, in path order.
//
//   - path only in current  -> Added (only when includeAdded)
//   - path only in previous -> Removed
//   - path in both, signatures differ -> Modified
//   - path in both, signatures equal  -> nothing
//
// If visit returns false the walk halts and Classify returns false.
// Returns true when every path was visited.
func Classify(previous, current fingerprint.Fingerprint, property, title string, includeAdded bool, visit Visitor) bool {
	i, j := 0, 0
	prevLen, curLen := previous.Len(), current.Len()

	for i < prevLen || j < curLen {
		var change FileChange
		switch {
		case j == curLen || (i < prevLen && previous.At(i).Path < current.At(j).Path):
			change = FileChange{Path: previous.At(i).Path, Kind: Removed, Property: property, Title: title}
			i++
		case i == prevLen || current.At(j).Path < previous.At(i).Path:
			path := current.At(j).Path
			j++
			if !includeAdded {
				continue
			}
			change = FileChange{Path: path, Kind: Added, Property: property, Title: title}
		default:
			prev, cur := previous.At(i), current.At(j)
			i++
			j++
			if prev.Signature == cur.Signature {
				continue
			}
			change = FileChange{Path: cur.Path, Kind: Modified, Property: property, Title: title}
		}
		if !visit(change) {
			return false
		}
	}
	return true
}
