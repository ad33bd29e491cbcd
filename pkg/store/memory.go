package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is a mutex-guarded in-memory Store. It is the default backend for tests and for callers that do not need
// records to survive a restart.
type Memory struct {
	mux  sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	// Hand out a copy so callers can't mutate the stored value.
	return slices.Clone(value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return slices.Collect(maps.Keys(m.data)), nil
}

func (m *Memory) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.data = make(map[string][]byte)
	return nil
}
