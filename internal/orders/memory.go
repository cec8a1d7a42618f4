package orders

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore is a Store held in process memory. A single mutex makes each
// reservation atomic with respect to every other one.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[string]Book
	orders   map[string]Order
	seq      []string          // order ids in insertion order
	external map[string]string // user_id + external_id -> order id
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:    map[string]Book{},
		orders:   map[string]Order{},
		external: map[string]string{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, tests use it for deterministic timestamps.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) SeedBooks(_ context.Context, books ...Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now()
	for _, b := range books {
		if existing, ok := m.books[b.ID]; ok {
			b.CreatedAt = existing.CreatedAt
		} else if b.CreatedAt.IsZero() {
			b.CreatedAt = ts
		}
		b.UpdatedAt = ts
		m.books[b.ID] = b
	}
	return nil
}

func (m *MemoryStore) ListBooks(_ context.Context) ([]Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := lo.Values(m.books)
	slices.SortFunc(out, func(a, b Book) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) GetBooks(_ context.Context, ids []string) ([]Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Book, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if b, ok := m.books[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetBook(_ context.Context, id string) (Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return Book{}, &BookNotFoundError{BookIDs: []string{id}}
	}
	return b, nil
}

func (m *MemoryStore) Reserve(_ context.Context, r Reservation) (Order, bool, error) {
	if len(r.Items) == 0 {
		return Order{}, false, errNoItems
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ExternalID != "" {
		if id, ok := m.external[externalKey(r.UserID, r.ExternalID)]; ok {
			return cloneOrder(m.orders[id]), true, nil
		}
	}

	snapshot := make(map[string]Book, len(r.Items))
	for _, id := range r.BookIDs() {
		if b, ok := m.books[id]; ok {
			snapshot[id] = b
		}
	}
	if err := checkStock(r, snapshot); err != nil {
		return Order{}, false, err
	}

	ts := m.now()
	for id, qty := range r.Demand() {
		b := m.books[id]
		b.StockQuantity -= qty
		b.UpdatedAt = ts
		m.books[id] = b
	}

	o := Order{
		ID:              uuid.NewString(),
		ExternalID:      r.ExternalID,
		UserID:          r.UserID,
		Items:           slices.Clone(r.Items),
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   r.PaymentMethod,
		Status:          StatusPending,
		TotalAmount:     r.TotalAmount,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	m.orders[o.ID] = o
	m.seq = append(m.seq, o.ID)
	if r.ExternalID != "" {
		m.external[externalKey(r.UserID, r.ExternalID)] = o.ID
	}
	return cloneOrder(o), false, nil
}

func (m *MemoryStore) GetOrder(_ context.Context, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, errOrderIDEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders returns matching orders newest first, with the total match count.
func (m *MemoryStore) ListOrders(_ context.Context, filter OrderFilter) ([]Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Order
	for i := len(m.seq) - 1; i >= 0; i-- {
		o, ok := m.orders[m.seq[i]]
		if ok && filter.matches(o) {
			matched = append(matched, cloneOrder(o))
		}
	}
	total := len(matched)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, orderID string, change StatusChange) (StatusUpdate, error) {
	if orderID == "" {
		return StatusUpdate{}, errOrderIDEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return StatusUpdate{}, ErrOrderNotFound
	}

	ts := m.now()
	prev, restock, err := change.apply(&o, ts)
	if err != nil {
		return StatusUpdate{From: prev}, err
	}
	if restock {
		for _, it := range o.Items {
			if b, ok := m.books[it.BookID]; ok {
				b.StockQuantity += it.Quantity
				b.UpdatedAt = ts
				m.books[it.BookID] = b
			}
		}
	}
	m.orders[orderID] = o
	return StatusUpdate{Order: cloneOrder(o), From: prev, Restocked: restock}, nil
}

// DeleteOrder removes the order without giving its stock back.
func (m *MemoryStore) DeleteOrder(_ context.Context, orderID string) error {
	if orderID == "" {
		return errOrderIDEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, orderID)
	if o.ExternalID != "" {
		delete(m.external, externalKey(o.UserID, o.ExternalID))
	}
	m.seq = slices.DeleteFunc(m.seq, func(id string) bool { return id == orderID })
	return nil
}

func externalKey(userID, externalID string) string {
	return userID + "\x00" + externalID
}

func cloneOrder(o Order) Order {
	o.Items = slices.Clone(o.Items)
	return o
}
