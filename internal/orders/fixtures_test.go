package orders_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fakeBook(id string, price string, stock int) orders.Book {
	return orders.Book{
		ID:            id,
		Title:         gofakeit.BookTitle(),
		Author:        gofakeit.BookAuthor(),
		Category:      gofakeit.BookGenre(),
		Rating:        decimal.NewFromFloat(gofakeit.Float64Range(1, 5)).Round(1),
		ReviewCount:   gofakeit.Number(0, 500),
		Price:         dec(price),
		StockQuantity: stock,
	}
}

func fakeAddress() orders.ShippingAddress {
	a := gofakeit.Address()
	return orders.ShippingAddress{
		Line1:      a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.Zip,
	}
}

// cartOf builds a valid cart whose total matches its items.
func cartOf(items ...orders.CartItem) orders.Cart {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return orders.Cart{
		Items:           items,
		ShippingAddress: fakeAddress(),
		PaymentMethod:   "card",
		TotalAmount:     total,
	}
}

func item(id string, qty int, price string) orders.CartItem {
	return orders.CartItem{BookID: id, Quantity: qty, UnitPrice: dec(price)}
}

func newSeededStore(t *testing.T, books ...orders.Book) *orders.MemoryStore {
	t.Helper()
	store := orders.NewMemoryStore()
	require.NoError(t, store.SeedBooks(t.Context(), books...))
	return store
}

func stockOf(t *testing.T, c orders.Catalog, id string) int {
	t.Helper()
	b, err := c.GetBook(t.Context(), id)
	require.NoError(t, err)
	return b.StockQuantity
}

type published struct {
	topic string
	key   string
	env   orders.Envelope
}

type fakePublisher struct {
	mu   sync.Mutex
	got  []published
	fail error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key []byte, env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.got = append(p.got, published{topic: topic, key: string(key), env: env})
	return nil
}

func (p *fakePublisher) events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.got...)
}

// countingStore records how often the reservation path reaches storage.
type countingStore struct {
	*orders.MemoryStore
	mu       sync.Mutex
	reserves int
}

func (s *countingStore) Reserve(ctx context.Context, r orders.Reservation) (orders.Order, bool, error) {
	s.mu.Lock()
	s.reserves++
	s.mu.Unlock()
	return s.MemoryStore.Reserve(ctx, r)
}
