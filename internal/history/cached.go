package history

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of entries CachedStore keeps in memory.
const DefaultCacheSize = 1024

// CachedStore keeps recently used entries of another Store in an LRU.
// Writes go through to the backing store before the cache is updated.
type CachedStore struct {
	backing Store
	cache   *lru.Cache[string, Entry]
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps backing with an LRU of the given size.
// A size <= 0 selects DefaultCacheSize.
func NewCachedStore(backing Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("history cache: %w", err)
	}
	return &CachedStore{backing: backing, cache: cache}, nil
}

func (c *CachedStore) Load(ctx context.Context, identity string) (Entry, bool, error) {
	if e, ok := c.cache.Get(identity); ok {
		return e, true, nil
	}
	e, ok, err := c.backing.Load(ctx, identity)
	if err != nil || !ok {
		return e, ok, err
	}
	c.cache.Add(identity, e)
	return e, true, nil
}

func (c *CachedStore) Store(ctx context.Context, identity string, entry Entry) error {
	if err := c.backing.Store(ctx, identity, entry); err != nil {
		c.cache.Remove(identity)
		return err
	}
	c.cache.Add(identity, entry)
	return nil
}

func (c *CachedStore) Remove(ctx context.Context, identity string) error {
	c.cache.Remove(identity)
	return c.backing.Remove(ctx, identity)
}

// List always reads the backing store.
func (c *CachedStore) List(ctx context.Context) ([]Record, error) {
	return c.backing.List(ctx)
}

// Len returns the number of cached entries.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}
