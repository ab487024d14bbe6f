package store

import (
	"context"
	"sync"
)

// MemoryRepository keeps rows in process memory. Data is lost on exit.
type MemoryRepository struct {
	mu    sync.RWMutex
	rows  map[string]*StoredTool
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*StoredTool)}
}

func (m *MemoryRepository) Put(_ context.Context, t *StoredTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*StoredTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]*StoredTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	out := []*StoredTool{}
	for i := offset; i < len(m.order) && (limit <= 0 || len(out) < limit); i++ {
		cp := *m.rows[m.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

func (m *MemoryRepository) ListBySourceFormat(_ context.Context, sourceFormat string) ([]*StoredTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*StoredTool{}
	for _, id := range m.order {
		if t := m.rows[id]; t.SourceFormat == sourceFormat {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepository) Close() error { return nil }
