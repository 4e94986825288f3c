package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values Values
	hub    *hub
	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(Values), hub: newHub()}
}

func (m *MemoryStore) Get(_ context.Context, defaults Values) (Values, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(Values, len(defaults))
	for k, def := range defaults {
		if v, ok := m.values[k]; ok {
			out[k] = clone(v)
			continue
		}
		out[k] = clone(def)
	}
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, values Values) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	changes := diff(m.values, values)
	for k, v := range values {
		m.values[k] = clone(v)
	}
	m.mu.Unlock()

	m.hub.publish(changes)
	return nil
}

func (m *MemoryStore) Subscribe(fn func(Changes)) func() {
	return m.hub.subscribe(fn)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}

func clone(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
