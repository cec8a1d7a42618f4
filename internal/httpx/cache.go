package httpx

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/rs/zerolog/log"
)

// orderCache is a read-through shortcut; Postgres stays the source of truth.
// A nil Cache turns every call into a miss or a no-op.
type orderCache struct {
	c redisx.Cache
}

func (oc orderCache) get(ctx context.Context, orderID string) (orders.Order, bool) {
	if oc.c == nil {
		return orders.Order{}, false
	}
	s, ok, err := oc.c.Get(ctx, redisx.OrderKey(orderID))
	if err != nil || !ok {
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return orders.Order{}, false
	}
	return o, true
}

func (oc orderCache) put(ctx context.Context, o orders.Order) {
	if oc.c == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := oc.c.Set(ctx, redisx.OrderKey(o.ID), string(b), redisx.TTLOrderCache); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("orderId", o.ID).Msg("order cache set failed")
	}
}

func (oc orderCache) invalidate(ctx context.Context, orderID string) {
	if oc.c == nil {
		return
	}
	if err := oc.c.Del(ctx, redisx.OrderKey(orderID)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("orderId", orderID).Msg("order cache invalidation failed")
	}
}

// idempotent returns the order id remembered for (userID, key).
func (oc orderCache) idempotent(ctx context.Context, userID, key string) (string, bool) {
	if oc.c == nil || key == "" {
		return "", false
	}
	id, ok, err := oc.c.Get(ctx, redisx.IdemOrderKey(userID, key))
	if err != nil || !ok || id == "" {
		return "", false
	}
	return id, true
}

func (oc orderCache) remember(ctx context.Context, userID, key, orderID string) {
	if oc.c == nil || key == "" {
		return
	}
	_ = oc.c.Set(ctx, redisx.IdemOrderKey(userID, key), orderID, redisx.TTLIdempotency)
}
