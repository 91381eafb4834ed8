package storage

import (
	"context"
	"sync"
)

// Memory implements KV with in-process concurrency safety. It backs tests and
// ephemeral sessions where nothing should outlive the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = v
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
