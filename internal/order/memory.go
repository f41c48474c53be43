package order

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store with the same stale-update rule as the
// Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	orders  map[string]Order
	creates int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

// Creates reports how many orders have been persisted.
func (m *MemoryStore) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

func (m *MemoryStore) Create(ctx context.Context, o Order) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.orders[o.ID] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, o Order) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if len(cur.StatusHistory) != len(o.StatusHistory)-1 {
		return Order{}, ErrStaleOrder
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	cur.UpdatedAt = o.UpdatedAt
	m.orders[id] = cur
	return cloneOrder(cur), nil
}

func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Order{}
	for _, o := range m.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, o.Status) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, st := range list {
		if st == s {
			return true
		}
	}
	return false
}

func cloneOrder(o Order) Order {
	o.LineItems = append([]LineItem(nil), o.LineItems...)
	o.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	return o
}
