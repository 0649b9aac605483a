package convlog

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory Storage for development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string][]Entry)}
}

func (m *MemoryStorage) AppendEntry(_ context.Context, sessionID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = append(m.entries[sessionID], e)
	return nil
}

func (m *MemoryStorage) LoadEntries(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.entries[sessionID]
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryStorage) ClearEntries(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}
