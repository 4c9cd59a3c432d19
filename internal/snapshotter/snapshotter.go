// Package snapshotter produces file-system fingerprints for declared roots.
//
// File signatures are cached in an LRU keyed by path and validated against
// size and modification time. Units that write outputs invalidate the cache
// for the paths they touched, or for everything when they cannot tell.
package snapshotter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/incr/internal/fingerprint"
)

// DefaultHashCacheSize is the number of file signatures kept in memory.
const DefaultHashCacheSize = 4096

type cachedSignature struct {
	size    int64
	modTime time.Time
	sig     fingerprint.Signature
}

// Fingerprinter turns file roots into fingerprints.
// Paths in fingerprints are slash-separated and relative to Root.
type Fingerprinter struct {
	root  string
	cache *lru.Cache[string, cachedSignature]
}

// New returns a Fingerprinter for paths under root.
// A cacheSize <= 0 selects DefaultHashCacheSize.
func New(root string, cacheSize int) (*Fingerprinter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultHashCacheSize
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("snapshotter root: %w", err)
	}
	cache, err := lru.New[string, cachedSignature](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("snapshotter cache: %w", err)
	}
	return &Fingerprinter{root: abs, cache: cache}, nil
}

// Root returns the absolute directory fingerprint paths are relative to.
func (f *Fingerprinter) Root() string {
	return f.root
}

// Resolve returns the absolute file-system path of a root or fingerprint path.
func (f *Fingerprinter) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(f.root, filepath.FromSlash(p))
}

// Fingerprint walks every root and returns the combined fingerprint.
// Directories contribute every regular file below them. Missing roots
// contribute nothing.
func (f *Fingerprinter) Fingerprint(roots []string) (fingerprint.Fingerprint, error) {
	files := make(map[string]fingerprint.Signature)
	for _, root := range roots {
		abs := f.Resolve(root)
		err := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			sig, err := f.signature(p)
			if err != nil {
				return err
			}
			files[f.relative(p)] = sig
			return nil
		})
		if err != nil {
			return fingerprint.Fingerprint{}, fmt.Errorf("fingerprint %s: %w", root, err)
		}
	}
	return fingerprint.New(files)
}

// Snapshot fingerprints every property's roots.
func (f *Fingerprinter) Snapshot(properties map[string][]string) (fingerprint.Snapshot, error) {
	props := make(map[string]fingerprint.Fingerprint, len(properties))
	for name, roots := range properties {
		fp, err := f.Fingerprint(roots)
		if err != nil {
			return fingerprint.Snapshot{}, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = fp
	}
	return fingerprint.NewSnapshot(props), nil
}

// Invalidate drops cached signatures for the given paths and everything
// below them.
func (f *Fingerprinter) Invalidate(paths ...string) {
	if len(paths) == 0 {
		return
	}
	prefixes := make([]string, len(paths))
	for i, p := range paths {
		prefixes[i] = f.Resolve(p)
	}
	for _, key := range f.cache.Keys() {
		for _, prefix := range prefixes {
			if key == prefix || strings.HasPrefix(key, prefix+string(filepath.Separator)) {
				f.cache.Remove(key)
				break
			}
		}
	}
}

// InvalidateAll drops every cached signature.
func (f *Fingerprinter) InvalidateAll() {
	f.cache.Purge()
}

// CachedLen returns the number of cached signatures.
func (f *Fingerprinter) CachedLen() int {
	return f.cache.Len()
}

func (f *Fingerprinter) signature(p string) (fingerprint.Signature, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if c, ok := f.cache.Get(p); ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.sig, nil
	}

	file, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer file.Close()

	sig, err := fingerprint.ReaderSignature(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p, err)
	}
	f.cache.Add(p, cachedSignature{size: info.Size(), modTime: info.ModTime(), sig: sig})
	return sig, nil
}

func (f *Fingerprinter) relative(p string) string {
	rel, err := filepath.Rel(f.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
