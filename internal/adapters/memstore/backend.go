package memstore

// Package memstore provides the in-memory StorageBackend used when no
// persistent backend is available. Sessions kept here do not survive a
// process restart.

import (
	"context"
	"sync"

	"github.com/helmgate/sessiond/internal/ports"
)

// Backend is a process-local key-value store. Safe for concurrent use.
type Backend struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ ports.StorageBackend = (*Backend)(nil)

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{values: make(map[string]string)}
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return v, nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *Backend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

// Len returns the number of stored keys. Intended for tests.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
