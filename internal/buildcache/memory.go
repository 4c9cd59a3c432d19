package buildcache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCache keeps entries in memory.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[Key]*Entry
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]*Entry)}
}

// Load returns a copy of the entry.
func (c *MemoryCache) Load(_ context.Context, key Key) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.clone(), true, nil
}

// Store saves a copy of the entry.
func (c *MemoryCache) Store(_ context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry.clone()
	return nil
}

// Len returns the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
