package orders_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, opts orders.Options, books ...orders.Book) (*orders.Service, *orders.MemoryStore, *fakePublisher) {
	t.Helper()
	store := newSeededStore(t, books...)
	pub := &fakePublisher{}
	opts.ServiceName = "bookstore-test"
	return orders.NewService(store, pub, opts), store, pub
}

func TestPlaceOrder(t *testing.T) {
	svc, store, pub := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))

	order, replayed, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10.00")))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, orders.StatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(dec("10.00")))
	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, 2, stockOf(t, store, "B1"))

	events := pub.events()
	require.Len(t, events, 1)
	assert.Equal(t, orders.TopicOrderPlaced, events[0].topic)
	assert.Equal(t, order.ID, events[0].key)
	assert.Equal(t, orders.EventOrderPlaced, events[0].env.EventType)
	assert.Equal(t, "bookstore-test", events[0].env.Producer)

	var p orders.OrderPlacedPayload
	require.NoError(t, json.Unmarshal(events[0].env.Payload, &p))
	assert.Equal(t, order.ID, p.OrderID)
	assert.True(t, p.TotalAmount.Equal(dec("10")))
}

func TestPlaceOrderInvalidCartSkipsStorage(t *testing.T) {
	store := &countingStore{MemoryStore: newSeededStore(t, fakeBook("B1", "10.00", 3))}
	pub := &fakePublisher{}
	svc := orders.NewService(store, pub, orders.Options{})

	_, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 0, "10.00")))
	require.ErrorIs(t, err, orders.ErrInvalidCart)
	assert.Zero(t, store.reserves)
	assert.Empty(t, pub.events())
	assert.Equal(t, 3, stockOf(t, store, "B1"))
}

func TestPlaceOrderUnauthorized(t *testing.T) {
	svc, _, _ := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))

	_, _, err := svc.PlaceOrder(t.Context(), "", cartOf(item("B1", 1, "10.00")))
	require.ErrorIs(t, err, orders.ErrUnauthorized)
}

func TestPlaceOrderReplayDoesNotRepublish(t *testing.T) {
	svc, store, pub := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))

	c := cartOf(item("B1", 1, "10.00"))
	c.IdempotencyKey = "checkout-42"

	first, _, err := svc.PlaceOrder(t.Context(), "u1", c)
	require.NoError(t, err)
	second, replayed, err := svc.PlaceOrder(t.Context(), "u1", c)
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, stockOf(t, store, "B1"))
	assert.Len(t, pub.events(), 1)
}

func TestPlaceOrderPublishFailureIsNotFatal(t *testing.T) {
	svc, store, pub := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))
	pub.fail = errors.New("broker down")

	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10.00")))
	require.NoError(t, err)

	got, err := store.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestPlaceOrderCatalogPriceEnforcement(t *testing.T) {
	svc, _, _ := newService(t, orders.Options{EnforceCatalogPrice: true}, fakeBook("B1", "10.00", 3))

	_, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "1.00")))
	require.ErrorIs(t, err, orders.ErrInvalidCart)

	_, _, err = svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10")))
	require.NoError(t, err)
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		opts       orders.Options
		first      string
		to         string
		wantErr    error
		wantStatus orders.Status
	}{
		{
			name:       "forward: ok",
			to:         "processing",
			wantStatus: orders.StatusProcessing,
		},
		{
			name:       "permissive backwards: ok",
			first:      "delivered",
			to:         "pending",
			wantStatus: orders.StatusPending,
		},
		{
			name:       "unrecognized: fail",
			to:         "shipped-ish",
			wantErr:    orders.ErrInvalidStatus,
			wantStatus: orders.StatusPending,
		},
		{
			name:       "strict backwards: fail",
			opts:       orders.Options{StrictTransitions: true},
			first:      "cancelled",
			to:         "pending",
			wantErr:    orders.ErrIllegalTransition,
			wantStatus: orders.StatusCancelled,
		},
		{
			name:       "strict skip ahead: fail",
			opts:       orders.Options{StrictTransitions: true},
			to:         "delivered",
			wantErr:    orders.ErrIllegalTransition,
			wantStatus: orders.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, tt.opts, fakeBook("B1", "10.00", 3))
			order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10.00")))
			require.NoError(t, err)

			if tt.first != "" {
				_, err = svc.UpdateStatus(t.Context(), order.ID, tt.first)
				require.NoError(t, err)
			}

			updated, err := svc.UpdateStatus(t.Context(), order.ID, tt.to)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, updated.Status)
			}

			got, err := svc.GetOrder(t.Context(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc, _, pub := newService(t, orders.Options{})

	_, err := svc.UpdateStatus(t.Context(), "nope", "shipped")
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	assert.Empty(t, pub.events())
}

func TestUpdateStatusPublishesChange(t *testing.T) {
	svc, _, pub := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))
	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10.00")))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(t.Context(), order.ID, "shipped")
	require.NoError(t, err)

	events := pub.events()
	require.Len(t, events, 2)
	assert.Equal(t, orders.TopicOrderStatusChanged, events[1].topic)

	var p orders.OrderStatusChangedPayload
	require.NoError(t, json.Unmarshal(events[1].env.Payload, &p))
	assert.Equal(t, orders.OrderStatusChangedPayload{OrderID: order.ID, From: orders.StatusPending, To: orders.StatusShipped}, p)
}

func TestCancelKeepsStockByDefault(t *testing.T) {
	svc, store, _ := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))
	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 2, "10.00")))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(t.Context(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 1, stockOf(t, store, "B1"))
}

func TestCancelRestoresStockOnce(t *testing.T) {
	svc, store, pub := newService(t, orders.Options{RestoreStockOnCancel: true}, fakeBook("B1", "10.00", 3), fakeBook("B2", "2.00", 1))
	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 2, "10.00"), item("B2", 1, "2.00")))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(t.Context(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, store, "B1"))
	assert.Equal(t, 1, stockOf(t, store, "B2"))

	// cancelled -> cancelled must not restock twice
	_, err = svc.UpdateStatus(t.Context(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, store, "B1"))

	// neither does leaving cancelled and coming back
	_, err = svc.UpdateStatus(t.Context(), order.ID, "pending")
	require.NoError(t, err)
	got, err := svc.UpdateStatus(t.Context(), order.ID, "cancelled")
	require.NoError(t, err)
	assert.True(t, got.StockRestored)
	assert.Equal(t, 3, stockOf(t, store, "B1"))
	assert.Equal(t, 1, stockOf(t, store, "B2"))

	events := pub.events()
	require.Len(t, events, 5)
	for i, want := range []bool{true, false, false, false} {
		var p orders.OrderStatusChangedPayload
		require.NoError(t, json.Unmarshal(events[i+1].env.Payload, &p))
		assert.Equal(t, want, p.StockRestored, "event %d", i+1)
	}
}

func TestGetUserOrderHidesOtherUsers(t *testing.T) {
	svc, _, _ := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))
	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 1, "10.00")))
	require.NoError(t, err)

	_, err = svc.GetUserOrder(t.Context(), "u2", order.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)

	got, err := svc.GetUserOrder(t.Context(), "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestDeleteOrderKeepsStock(t *testing.T) {
	svc, store, pub := newService(t, orders.Options{RestoreStockOnCancel: true}, fakeBook("B1", "10.00", 3))
	order, _, err := svc.PlaceOrder(t.Context(), "u1", cartOf(item("B1", 2, "10.00")))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(t.Context(), order.ID))
	assert.Equal(t, 1, stockOf(t, store, "B1"))

	_, err = svc.GetOrder(t.Context(), order.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	require.ErrorIs(t, svc.DeleteOrder(t.Context(), order.ID), orders.ErrOrderNotFound)

	events := pub.events()
	require.Len(t, events, 2)
	assert.Equal(t, orders.TopicOrderDeleted, events[1].topic)
}

func TestTraceIDFlowsIntoEnvelope(t *testing.T) {
	svc, _, pub := newService(t, orders.Options{}, fakeBook("B1", "10.00", 3))
	ctx := orders.WithTraceID(t.Context(), "req-123")

	_, _, err := svc.PlaceOrder(ctx, "u1", cartOf(item("B1", 1, "10.00")))
	require.NoError(t, err)
	assert.Equal(t, "req-123", pub.events()[0].env.TraceID)
}
