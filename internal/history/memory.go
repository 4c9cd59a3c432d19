package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, identity string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[identity]
	return e, ok, nil
}

func (m *MemoryStore) Store(_ context.Context, identity string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[identity] = entry
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, identity)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, Record{Identity: id, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}
