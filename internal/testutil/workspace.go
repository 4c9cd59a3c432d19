package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/snapshotter"
)

// Workspace is a temporary directory with a fingerprinter rooted at it.
type Workspace struct {
	t     testing.TB
	Root  string
	Files *snapshotter.Fingerprinter
}

// NewWorkspace creates a workspace under t.TempDir().
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	root := t.TempDir()
	files, err := snapshotter.New(root, 0)
	require.NoError(t, err)
	return &Workspace{t: t, Root: root, Files: files}
}

// Write creates or replaces a file, creating parent directories.
func (w *Workspace) Write(rel, content string) {
	w.t.Helper()
	p := w.Files.Resolve(rel)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(w.t, os.WriteFile(p, []byte(content), 0o644))
}

// Read returns the content of a file.
func (w *Workspace) Read(rel string) string {
	w.t.Helper()
	data, err := os.ReadFile(w.Files.Resolve(rel))
	require.NoError(w.t, err)
	return string(data)
}

// Exists reports whether the file exists.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Files.Resolve(rel))
	return err == nil
}

// Remove deletes a file or directory tree.
func (w *Workspace) Remove(rel string) {
	w.t.Helper()
	require.NoError(w.t, os.RemoveAll(w.Files.Resolve(rel)))
}
