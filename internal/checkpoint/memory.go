package checkpoint

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Checkpoint)}
}

func (m *MemoryStore) Save(ctx context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.runs[cp.RunID]
	idx, found := slices.BinarySearchFunc(list, cp.Step, func(c Checkpoint, step int) int {
		return c.Step - step
	})
	if found {
		list[idx] = cp
	} else {
		list = slices.Insert(list, idx, cp)
	}
	m.runs[cp.RunID] = list
	return nil
}

func (m *MemoryStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.runs[runID]
	if len(list) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return list[len(list)-1], nil
}

func (m *MemoryStore) Clear(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.runs[runID]), nil
}
