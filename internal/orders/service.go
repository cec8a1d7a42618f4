package orders

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

type Options struct {
	ServiceName          string
	StrictTransitions    bool
	RestoreStockOnCancel bool
	EnforceCatalogPrice  bool
}

// Service is the reservation engine and status machine on top of a Store.
type Service struct {
	store  Store
	events Publisher
	policy TransitionPolicy
	opts   Options
}

func NewService(store Store, events Publisher, opts Options) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		store:  store,
		events: events,
		policy: PolicyFor(opts.StrictTransitions),
		opts:   opts,
	}
}

// PlaceOrder validates the cart, then commits it against live stock in one atomic call.
// replayed is true when the idempotency key matched an existing order.
func (s *Service) PlaceOrder(ctx context.Context, userID string, cart Cart) (order Order, replayed bool, err error) {
	res, err := cart.Validate(userID)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str("userId", userID).Msg("cart rejected")
		return Order{}, false, err
	}
	res.EnforceCatalogPrice = s.opts.EnforceCatalogPrice

	order, replayed, err = s.store.Reserve(ctx, res)
	if err != nil {
		var stockErr *InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			log.Ctx(ctx).Info().Str("userId", userID).Interface("shortages", stockErr.Shortages).Msg("reservation rejected")
		case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrInvalidCart):
			log.Ctx(ctx).Info().Err(err).Str("userId", userID).Msg("reservation rejected")
		default:
			log.Ctx(ctx).Error().Err(err).Str("userId", userID).Msg("reservation failed")
		}
		return Order{}, false, err
	}

	if replayed {
		log.Ctx(ctx).Info().Str("orderId", order.ID).Str("externalId", order.ExternalID).Msg("idempotent replay")
		return order, true, nil
	}

	log.Ctx(ctx).Info().Str("orderId", order.ID).Str("userId", userID).
		Str("total", order.TotalAmount.String()).Int("items", len(order.Items)).Msg("order placed")

	s.publish(ctx, TopicOrderPlaced, EventOrderPlaced, order.ID, OrderPlacedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
	})
	return order, false, nil
}

// UpdateStatus parses the requested status and applies it under the configured policy.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}

	upd, err := s.store.UpdateStatus(ctx, orderID, StatusChange{
		To:              to,
		Policy:          s.policy,
		RestockOnCancel: s.opts.RestoreStockOnCancel,
	})
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) && !errors.Is(err, ErrIllegalTransition) {
			log.Ctx(ctx).Error().Err(err).Str("orderId", orderID).Msg("status update failed")
		}
		return Order{}, err
	}

	log.Ctx(ctx).Info().Str("orderId", orderID).Str("from", string(upd.From)).Str("to", string(to)).
		Bool("stockRestored", upd.Restocked).Msg("order status changed")

	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
		OrderID:       orderID,
		From:          upd.From,
		To:            to,
		StockRestored: upd.Restocked,
	})
	return upd.Order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// GetUserOrder hides orders of other users behind ErrOrderNotFound.
func (s *Service) GetUserOrder(ctx context.Context, userID, orderID string) (Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	return s.store.ListOrders(ctx, filter)
}

// DeleteOrder removes the order. This bypasses stock restoration.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	log.Ctx(ctx).Warn().Str("orderId", orderID).Str("status", string(o.Status)).Msg("order deleted without stock restoration")
	s.publish(ctx, TopicOrderDeleted, EventOrderDeleted, orderID, OrderDeletedPayload{OrderID: orderID, Status: o.Status})
	return nil
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	env, err := NewEnvelope(ctx, eventType, s.opts.ServiceName, orderID, payload)
	if err == nil {
		err = s.events.Publish(ctx, topic, PartitionKey(orderID), env)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("orderId", orderID).Str("event", eventType).Msg("event publish failed")
	}
}
