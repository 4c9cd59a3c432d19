package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/fingerprint"
)

func srcPrevious() fingerprint.Fingerprint {
	return fingerprint.MustNew(map[string]fingerprint.Signature{"/f1": "h1", "/f2": "h2"})
}

func srcCurrent() fingerprint.Fingerprint {
	return fingerprint.MustNew(map[string]fingerprint.Signature{"/f1": "h1", "/f2": "h2x", "/f3": "h3"})
}

func classifyAll(prev, cur fingerprint.Fingerprint, includeAdded bool) []FileChange {
	var col Collector
	Classify(prev, cur, "src", TitleInput, includeAdded, col.Visit)
	return col.Changes()
}

func TestClassify_SrcScenario(t *testing.T) {
	got := classifyAll(srcPrevious(), srcCurrent(), true)

	require.Len(t, got, 2)
	assert.Equal(t, FileChange{Path: "/f2", Kind: Modified, Property: "src", Title: TitleInput}, got[0])
	assert.Equal(t, FileChange{Path: "/f3", Kind: Added, Property: "src", Title: TitleInput}, got[1])
	assert.Equal(t, "Input property 'src' file /f2 has changed.", got[0].Message())
	assert.Equal(t, "Input property 'src' file /f3 has been added.", got[1].Message())
}

func TestClassify_ExcludesAddedWhenAsked(t *testing.T) {
	got := classifyAll(srcPrevious(), srcCurrent(), false)

	require.Len(t, got, 1)
	assert.Equal(t, "/f2", got[0].Path)
	assert.Equal(t, Modified, got[0].Kind)
}

func TestClassify_RemovedAndEmptySides(t *testing.T) {
	prev := fingerprint.MustNew(map[string]fingerprint.Signature{"/a": "1", "/b": "2"})

	removed := classifyAll(prev, fingerprint.Empty(), true)
	require.Len(t, removed, 2)
	for _, c := range removed {
		assert.Equal(t, Removed, c.Kind)
	}

	added := classifyAll(fingerprint.Empty(), prev, true)
	require.Len(t, added, 2)
	for _, c := range added {
		assert.Equal(t, Added, c.Kind)
	}

	assert.Empty(t, classifyAll(prev, prev, true))
	assert.Empty(t, classifyAll(fingerprint.Empty(), fingerprint.Empty(), true))
}

func TestClassify_Deterministic(t *testing.T) {
	first := classifyAll(srcPrevious(), srcCurrent(), true)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, classifyAll(srcPrevious(), srcCurrent(), true))
	}
}

func TestClassify_InverseSymmetry(t *testing.T) {
	prev := fingerprint.MustNew(map[string]fingerprint.Signature{"/a": "1", "/b": "2", "/c": "3"})
	cur := fingerprint.MustNew(map[string]fingerprint.Signature{"/b": "2x", "/c": "3", "/d": "4"})

	forward := classifyAll(prev, cur, true)
	backward := classifyAll(cur, prev, true)

	require.Len(t, backward, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i].Inverse(), backward[i])
	}
}

func TestClassify_EarlyExitEveryN(t *testing.T) {
	prev := fingerprint.MustNew(map[string]fingerprint.Signature{"/a": "1", "/b": "2", "/c": "3"})
	cur := fingerprint.MustNew(map[string]fingerprint.Signature{"/b": "2x", "/c": "3x", "/d": "4"})
	all := classifyAll(prev, cur, true)
	require.Len(t, all, 4)

	// The visitor accepts n changes and rejects the next one.
	for n := 0; n <= len(all); n++ {
		var seen []FileChange
		complete := Classify(prev, cur, "src", TitleInput, true, func(c FileChange) bool {
			seen = append(seen, c)
			return len(seen) <= n
		})
		if n == len(all) {
			assert.True(t, complete, "n=%d", n)
			assert.Equal(t, all, seen, "n=%d", n)
			continue
		}
		assert.False(t, complete, "n=%d", n)
		assert.Equal(t, all[:n+1], seen, "n=%d", n)
	}
}

func TestClassify_StopOnFirstChange(t *testing.T) {
	prev := fingerprint.MustNew(map[string]fingerprint.Signature{"/a": "1", "/b": "2"})
	cur := fingerprint.MustNew(map[string]fingerprint.Signature{"/a": "1x", "/b": "2x"})

	calls := 0
	complete := Classify(prev, cur, "src", TitleInput, true, func(FileChange) bool {
		calls++
		return false
	})
	assert.False(t, complete)
	assert.Equal(t, 1, calls)
}

func TestLimitingCollector(t *testing.T) {
	col := &LimitingCollector{Max: 1}
	complete := Classify(srcPrevious(), srcCurrent(), "src", TitleInput, true, col.Visit)

	assert.False(t, complete)
	require.Len(t, col.Changes(), 1)
	assert.Equal(t, "/f2", col.Changes()[0].Path)
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "ADDED", Added.String())
	assert.Equal(t, "REMOVED", Removed.String())
	assert.Equal(t, "MODIFIED", Modified.String())
	assert.Equal(t, "ChangeKind(0)", ChangeKind(0).String())
}

func TestChangeKind_TextRoundTrip(t *testing.T) {
	var k ChangeKind
	require.NoError(t, k.UnmarshalText([]byte("REMOVED")))
	assert.Equal(t, Removed, k)
	assert.Error(t, k.UnmarshalText([]byte("RENAMED")))
}
