package storage

import (
	"context"
	"sync"

	"verity/pkg/platform/sentinel"
)

// Memory keeps evidence bytes in process memory for dev and tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[Ref][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[Ref][]byte)}
}

func (m *Memory) Store(_ context.Context, data []byte, path string) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := Ref("mem://" + path)
	copied := make([]byte, len(data))
	copy(copied, data)
	m.blobs[ref] = copied
	return ref, nil
}

func (m *Memory) Fetch(_ context.Context, ref Ref) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.blobs[ref]; ok {
		copied := make([]byte, len(data))
		copy(copied, data)
		return copied, nil
	}
	return nil, sentinel.ErrNotFound
}
