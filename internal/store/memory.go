package store

import (
	"context"
	"sync"

	"github.com/sells-group/run-harness/internal/artifact"
)

// MemoryStore keeps records in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []artifact.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, records []artifact.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make([]artifact.Record, len(records))
	copy(m.records, records)
	return nil
}

func (m *MemoryStore) Load(_ context.Context) ([]artifact.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]artifact.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
