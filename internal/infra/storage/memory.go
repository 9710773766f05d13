package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"crypto_dash/internal/domain"
)

// MemoryStore is an in-process KeyValueStore. Values are kept JSON encoded so
// callers observe the same copy semantics as the SQLite store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailSet, when non-nil, is returned by every Set call.
	FailSet error
}

var _ domain.KeyValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	if m.FailSet != nil {
		return m.FailSet
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Raw returns the stored JSON for key, for assertions in tests.
func (m *MemoryStore) Raw(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	return string(raw), ok
}
