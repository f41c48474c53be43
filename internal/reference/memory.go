package reference

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory RecordStore used by tests and local runs
// without a database. It enforces the (user, product) uniqueness constraint.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
	calls   int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

// Calls reports how many store operations have been served.
func (m *MemoryRepository) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryRepository) List(ctx context.Context, userID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	out := []Record{}
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

func (m *MemoryRepository) Create(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	for _, r := range m.records {
		if r.UserID == rec.UserID && r.ProductID == rec.ProductID {
			return Record{}, ErrAlreadyListed
		}
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	cur, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	cur.Quantity = rec.Quantity
	m.records[id] = cur
	return cur, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}
