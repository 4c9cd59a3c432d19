package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("")
	assert.Equal(t, "inv-1", ids.Generate())
	assert.Equal(t, "inv-2", ids.Generate())

	assert.Equal(t, "run-1", NewSequentialIDs("run").Generate())
}

func TestWorkspace(t *testing.T) {
	w := NewWorkspace(t)
	w.Write("a/b.txt", "hello")
	assert.True(t, w.Exists("a/b.txt"))
	assert.Equal(t, "hello", w.Read("a/b.txt"))

	w.Remove("a")
	assert.False(t, w.Exists("a/b.txt"))
}

func TestFixtures(t *testing.T) {
	fp := Fingerprint("/f2", "h2", "/f1", "h1")
	assert.Equal(t, []string{"/f1", "/f2"}, fp.Paths())

	snap := Snapshot("src", fp, "lib", Fingerprint())
	assert.Equal(t, []string{"lib", "src"}, snap.Names())

	assert.Panics(t, func() { Fingerprint("/f1") })
}
