package kvstore

import (
	"context"
	"sync"
)

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.MultiSet(ctx, []Pair{{Key: key, Value: value}})
}

// MultiGet returns the values for keys in request order.
func (m *Memory) MultiGet(ctx context.Context, keys []string) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Pair, len(keys))
	for i, k := range keys {
		v, ok := m.values[k]
		out[i] = Pair{Key: k, Value: v, Found: ok}
	}
	return out, nil
}

// MultiSet stores all pairs under a single lock.
func (m *Memory) MultiSet(ctx context.Context, pairs []Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, p := range pairs {
		m.values[p.Key] = p.Value
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Close marks the store closed. Values are discarded.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = nil
	return nil
}

// Ensure Memory implements Store.
var _ Store = (*Memory)(nil)
