package preferences

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps preferences in process. It backs tests and can stand in for
// the database Backend.
type Memory struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]json.RawMessage)}
}

// Get decodes the value into out and reports whether the preference exists.
func (m *Memory) Get(ctx context.Context, scope, key string, out any) (bool, error) {
	raw, found, err := m.GetRaw(ctx, scope, key)
	if err != nil || !found {
		return false, err
	}

	return true, decode(raw, out)
}

// Set creates or replaces a preference.
func (m *Memory) Set(ctx context.Context, scope, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}

	return m.SetRaw(ctx, scope, key, raw)
}

// GetRaw implements Backend.
func (m *Memory) GetRaw(_ context.Context, scope, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.values[cacheKey(scope, key)]

	return raw, ok, nil
}

// SetRaw implements Backend.
func (m *Memory) SetRaw(_ context.Context, scope, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[cacheKey(scope, key)] = value

	return nil
}

// Remove implements Store and Backend.
func (m *Memory) Remove(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, cacheKey(scope, key))

	return nil
}

var (
	_ Store   = (*Memory)(nil)
	_ Backend = (*Memory)(nil)
	_ Store   = (*Cached)(nil)
)
