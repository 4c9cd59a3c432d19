package buildcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LocalCache stores entries in a directory.
//
// Structure:
//
//	{Dir}/
//	  {key[0:2]}/
//	    {key}/
//	      metadata.json
//	      blobs/
//	        {index}.blob
type LocalCache struct {
	Dir string
}

var _ Cache = (*LocalCache)(nil)

// NewLocalCache returns a cache rooted at dir.
func NewLocalCache(dir string) *LocalCache {
	return &LocalCache{Dir: dir}
}

// Load reads an entry and its blobs.
func (c *LocalCache) Load(_ context.Context, key Key) (*Entry, bool, error) {
	entryDir := c.entryPath(key)
	data, err := os.ReadFile(filepath.Join(entryDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache metadata: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("parsing cache metadata: %w", err)
	}

	blobsDir := filepath.Join(entryDir, "blobs")
	for i := range entry.Files {
		content, err := os.ReadFile(filepath.Join(blobsDir, fmt.Sprintf("%d.blob", i)))
		if err != nil {
			return nil, false, fmt.Errorf("reading blob %d: %w", i, err)
		}
		entry.Files[i].Content = content
	}
	return &entry, true, nil
}

// Store writes the entry into a temp directory and renames it into place,
// so a crash never leaves a partial entry at the canonical path.
func (c *LocalCache) Store(_ context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}

	entryDir := c.entryPath(entry.Key)
	parentDir := filepath.Dir(entryDir)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parentDir, "tmp-entry-")
	if err != nil {
		return fmt.Errorf("creating temp cache entry dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	blobsDir := filepath.Join(tmpDir, "blobs")
	if err := os.MkdirAll(blobsDir, 0o755); err != nil {
		return fmt.Errorf("creating cache blobs dir: %w", err)
	}

	metadata := *entry
	metadata.Files = make([]File, len(entry.Files))
	for i, f := range entry.Files {
		if err := os.WriteFile(filepath.Join(blobsDir, fmt.Sprintf("%d.blob", i)), f.Content, 0o644); err != nil {
			return fmt.Errorf("writing blob %d: %w", i, err)
		}
		metadata.Files[i] = File{Path: f.Path}
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}

	// A crash between remove and rename yields a miss, not corruption.
	_ = os.RemoveAll(entryDir)
	if err := os.Rename(tmpDir, entryDir); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	committed = true
	return nil
}

// entryPath uses the first two characters of the key as a fan-out directory.
func (c *LocalCache) entryPath(key Key) string {
	k := string(key)
	if len(k) < 2 {
		return filepath.Join(c.Dir, k)
	}
	return filepath.Join(c.Dir, k[:2], k)
}
