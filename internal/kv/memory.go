package kv

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte

	// failAll and failKeys make Set return an error, failDeletes makes
	// Delete return one. Used to exercise rollback paths.
	failAll     bool
	failKeys    map[string]bool
	failDeletes map[string]bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

var errWriteDisabled = errors.New("memory store: writes disabled")

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failKeys[key] {
		return errWriteDisabled
	}
	m.data[key] = slices.Clone(value)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeletes[key] {
		return errWriteDisabled
	}
	delete(m.data, key)
	return nil
}

// SetFailWrites toggles write failures.
func (m *Memory) SetFailWrites(fail bool) {
	m.mu.Lock()
	m.failAll = fail
	m.mu.Unlock()
}

// SetFailKeys makes Set fail for keys only. Calling it without keys clears
// the list.
func (m *Memory) SetFailKeys(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKeys = make(map[string]bool, len(keys))
	for _, k := range keys {
		m.failKeys[k] = true
	}
}

// SetFailDeleteKeys makes Delete fail for keys only. Calling it without keys
// clears the list.
func (m *Memory) SetFailDeleteKeys(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDeletes = make(map[string]bool, len(keys))
	for _, k := range keys {
		m.failDeletes[k] = true
	}
}

// Len returns the number of keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Name implements Store.
func (m *Memory) Name() string { return "memory" }

// Close implements Store.
func (m *Memory) Close() error { return nil }
