package adapter

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

type memoryBlob struct {
	data []byte
	meta BlobMeta
}

// MemoryBlobStore is an in-process BlobStore with switchable availability.
type MemoryBlobStore struct {
	mu          sync.RWMutex
	blobs       map[string]memoryBlob
	unavailable bool
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]memoryBlob)}
}

// SetAvailable toggles every call between success and ErrBlobStoreUnavailable.
func (m *MemoryBlobStore) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !available
}

func (m *MemoryBlobStore) Put(_ context.Context, key string, data []byte, meta BlobMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrBlobStoreUnavailable
	}
	m.blobs[key] = memoryBlob{
		data: slices.Clone(data),
		meta: BlobMeta{ContentType: meta.ContentType, Metadata: maps.Clone(meta.Metadata)},
	}
	return nil
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, BlobMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, BlobMeta{}, ErrBlobStoreUnavailable
	}
	b, ok := m.blobs[key]
	if !ok {
		return nil, BlobMeta{}, ErrNotFound
	}
	return slices.Clone(b.data), BlobMeta{ContentType: b.meta.ContentType, Metadata: maps.Clone(b.meta.Metadata)}, nil
}

func (m *MemoryBlobStore) URL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return "", ErrBlobStoreUnavailable
	}
	return "memory://" + key, nil
}

func (m *MemoryBlobStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, ErrBlobStoreUnavailable
	}
	keys := make([]string, 0)
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrBlobStoreUnavailable
	}
	delete(m.blobs, key)
	return nil
}
