package kv

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed Store. It serves the session scope and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]string
	quota    int
	watchers map[string][]func()
}

// NewMemoryStore creates an empty store; quota <= 0 disables the limit
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]string),
		quota:    quota,
		watchers: make(map[string][]func()),
	}
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Store
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(key, value)
}

func (m *MemoryStore) setLocked(key, value string) error {
	if m.quota > 0 {
		size := len(value) + len(key)
		for k, v := range m.data {
			if k != key {
				size += len(k) + len(v)
			}
		}
		if size > m.quota {
			return quotaError(key, size, m.quota)
		}
	}
	m.data[key] = value
	return nil
}

// Remove implements Store
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Watch implements Store. Only SetFromPeer triggers watchers.
func (m *MemoryStore) Watch(ctx context.Context, key string, fn func()) error {
	m.mu.Lock()
	m.watchers[key] = append(m.watchers[key], fn)
	idx := len(m.watchers[key]) - 1
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.watchers[key][idx] = nil
		m.mu.Unlock()
	}()
	return nil
}

// SetFromPeer writes a value as if another process had written it and
// notifies watchers of key.
func (m *MemoryStore) SetFromPeer(key, value string) error {
	m.mu.Lock()
	if err := m.setLocked(key, value); err != nil {
		m.mu.Unlock()
		return err
	}
	fns := append([]func(){}, m.watchers[key]...)
	m.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}
