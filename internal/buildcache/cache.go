// Package buildcache stores the outputs of unit executions by cache key so
// that an identical execution elsewhere can be skipped.
//
// Three stores share the Cache interface:
//
//	LocalCache   directory on disk, atomic entry commits
//	S3Cache      S3-compatible bucket (MinIO client)
//	MemoryCache  in-process, for tests
//
// Tiered combines a local and a remote cache.
package buildcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/incr/internal/fingerprint"
	"github.com/roach88/incr/internal/snapshotter"
)

// Key identifies a cache entry. See fingerprint.CacheKey.
type Key string

// File is one cached output file.
type File struct {
	// Path is workspace-relative, slash-separated.
	Path string `json:"path"`

	// Content is the file content. Stores may keep it out of line.
	Content []byte `json:"content,omitempty"`
}

// Entry is the stored result of one execution.
type Entry struct {
	Key           Key                  `json:"key"`
	Identity      string               `json:"identity"`
	Outputs       fingerprint.Snapshot `json:"outputs"`
	Files         []File               `json:"files"`
	ExecutionTime time.Duration        `json:"execution_time"`
}

// Cache is a build cache.
type Cache interface {
	// Load returns the entry for key. ok is false on a miss.
	Load(ctx context.Context, key Key) (entry *Entry, ok bool, err error)

	// Store saves an entry, replacing any entry with the same key.
	Store(ctx context.Context, entry *Entry) error
}

// Capture reads every file of an output snapshot into a new entry.
func Capture(files *snapshotter.Fingerprinter, key Key, identity string, outputs fingerprint.Snapshot, took time.Duration) (*Entry, error) {
	entry := &Entry{Key: key, Identity: identity, Outputs: outputs, ExecutionTime: took}
	for _, name := range outputs.Names() {
		fp, _ := outputs.Get(name)
		for _, p := range fp.Paths() {
			data, err := os.ReadFile(files.Resolve(p))
			if err != nil {
				return nil, fmt.Errorf("capture %s: %w", p, err)
			}
			entry.Files = append(entry.Files, File{Path: p, Content: data})
		}
	}
	return entry, nil
}

// Restore writes every file of the entry into the workspace. A failure may
// leave some files written; callers must clean up the outputs.
func Restore(files *snapshotter.Fingerprinter, entry *Entry) error {
	for _, f := range entry.Files {
		dst := files.Resolve(f.Path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("restore %s: %w", f.Path, err)
		}
		if err := os.WriteFile(dst, f.Content, 0o644); err != nil {
			return fmt.Errorf("restore %s: %w", f.Path, err)
		}
		if sig := fingerprint.ContentSignature(f.Content); !entry.hasSignature(f.Path, sig) {
			return fmt.Errorf("restore %s: content does not match cached signature", f.Path)
		}
	}
	return nil
}

func (e *Entry) hasSignature(path string, sig fingerprint.Signature) bool {
	for _, name := range e.Outputs.Names() {
		fp, _ := e.Outputs.Get(name)
		if s, ok := fp.Lookup(path); ok {
			return s == sig
		}
	}
	return false
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Files = make([]File, len(e.Files))
	for i, f := range e.Files {
		c.Files[i] = File{Path: f.Path, Content: append([]byte(nil), f.Content...)}
	}
	return &c
}
