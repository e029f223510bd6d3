package cache

import (
	"bytes"
	"sync"
)

// memoryTier holds entries for the process lifetime.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[Key]Entry)}
}

// get returns a copy of the entry so callers cannot alter stored bytes.
func (m *memoryTier) get(k Key) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	e.Value = bytes.Clone(e.Value)
	return e, true
}

func (m *memoryTier) put(e Entry) {
	e.Value = bytes.Clone(e.Value)
	e.Tier = TierMemory

	m.mu.Lock()
	m.entries[e.Key] = e
	m.mu.Unlock()
}

func (m *memoryTier) delete(k Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[k]
	delete(m.entries, k)
	return ok
}

// reset drops every entry outside the kept buckets and reports how many
// were dropped.
func (m *memoryTier) reset(keep map[string]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make(map[Key]Entry)
	for k, e := range m.entries {
		if keep[k.Bucket] {
			kept[k] = e
		}
	}
	n := len(m.entries) - len(kept)
	m.entries = kept
	return n
}

func (m *memoryTier) snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		e.Value = bytes.Clone(e.Value)
		out = append(out, e)
	}
	return out
}

func (m *memoryTier) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
