package cache

import (
	"context"
	"slices"
	"sync"
)

// MemoryBlobStore keeps blobs in process memory. Nothing survives a restart.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.blobs[namespace]), nil
}

func (m *MemoryBlobStore) Save(ctx context.Context, namespace string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[namespace] = slices.Clone(payload)
	m.saves++
	return nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, namespace)
	return nil
}

// Saves reports how many writes reached the store.
func (m *MemoryBlobStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
