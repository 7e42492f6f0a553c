package store

import (
	"context"
	"sync"

	"github.com/downfa11-org/go-relay/pkg/types"
)

// MemoryBackend keeps the window in process. Index 0 is the newest entry.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries []types.Message
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Push(ctx context.Context, msg types.Message, capacity int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) < capacity {
		m.entries = append(m.entries, types.Message{})
	}
	copy(m.entries[1:], m.entries)
	m.entries[0] = msg
	if len(m.entries) > capacity {
		m.entries = m.entries[:capacity]
	}
	return int64(len(m.entries)), nil
}

func (m *MemoryBackend) Range(ctx context.Context, limit int) ([]types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit < n {
		n = limit
	}
	out := make([]types.Message, n)
	copy(out, m.entries[:n])
	return out, nil
}

func (m *MemoryBackend) Len(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}
