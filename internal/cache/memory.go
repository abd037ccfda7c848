package cache

import (
	"context"
	"sort"
	"sync"
)

type memoryEntry struct {
	entry   Entry
	courses map[string]struct{}
}

// MemoryBackend keeps entries in process. Each MergeDocument runs under one
// lock, which makes it the in-memory equivalent of a document merge.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]*memoryEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]*memoryEntry)}
}

// Fetch returns a copy of the stored entry.
func (m *MemoryBackend) Fetch(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok {
		return Entry{}, false, nil
	}

	out := item.entry
	out.CourseIDs = make([]string, 0, len(item.courses))
	for id := range item.courses {
		out.CourseIDs = append(out.CourseIDs, id)
	}
	sort.Strings(out.CourseIDs)
	return out, true, nil
}

// MergeDocument sets the document fields and unions the course id.
func (m *MemoryBackend) MergeDocument(_ context.Context, key string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		item = &memoryEntry{
			entry:   Entry{Key: key},
			courses: make(map[string]struct{}),
		}
		m.items[key] = item
	}

	item.entry.Language = doc.Language
	item.entry.Context = doc.Context
	item.entry.ContextHash = doc.ContextHash
	item.entry.Message = doc.Message
	item.entry.UpdatedAt = doc.UpdatedAt
	if doc.AudioURL != "" {
		item.entry.AudioURL = doc.AudioURL
	}
	if doc.CourseID != "" {
		item.courses[doc.CourseID] = struct{}{}
	}
	return nil
}

// Len returns the number of entries currently stored.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Clear removes all entries. Useful for tests or manual resets.
func (m *MemoryBackend) Clear() {
	m.mu.Lock()
	m.items = make(map[string]*memoryEntry)
	m.mu.Unlock()
}
