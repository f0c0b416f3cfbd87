package assets

import (
	"context"
	"fmt"
	"os"
	"sync"
)

const memoryBaseURL = "memory://assets"

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
	}
}

// Put copies the local file into memory.
func (m *MemoryStore) Put(ctx context.Context, localPath string, kind Kind, meta Metadata) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	key := ObjectName(kind, meta)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return joinRef(memoryBaseURL, key), nil
}

// Remove deletes the object behind ref, if present.
func (m *MemoryStore) Remove(ctx context.Context, ref string, kind Kind) error {
	key, err := ObjectKey(ref, kind)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Exists reports whether ref still resolves to a stored object.
func (m *MemoryStore) Exists(ref string, kind Kind) bool {
	key, err := ObjectKey(ref, kind)
	if err != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
