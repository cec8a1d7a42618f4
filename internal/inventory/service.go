package inventory

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-bookstore-orders/internal/kafka"
	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/redisx"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	kafkago "github.com/segmentio/kafka-go"
)

// Service watches placed orders and raises StockLow alerts for the books they drained.
type Service struct {
	Catalog     orders.Catalog
	Cache       redisx.Cache // optional; nil disables dedup
	Events      orders.Publisher
	Threshold   int
	ServiceName string
}

// HandleOrderPlaced: dipasang sebagai handler consumer.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// malformed message, committing it is the only way past it
		log.Error().Err(err).Int64("offset", m.Offset).Msg("undecodable envelope skipped")
		return nil
	}
	return s.HandleEnvelope(ctx, env)
}

func (s *Service) HandleEnvelope(ctx context.Context, env orders.Envelope) error {
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	if s.Cache != nil {
		fresh, err := s.Cache.SetNX(ctx, redisx.DedupKey(s.ServiceName, env.EventID), "1", redisx.TTLDedup)
		if err != nil {
			log.Warn().Err(err).Str("eventId", env.EventID).Msg("dedup unavailable, processing anyway")
		} else if !fresh {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		log.Error().Err(err).Str("eventId", env.EventID).Msg("undecodable OrderPlaced payload skipped")
		return nil
	}

	ids := lo.Uniq(lo.Map(p.Items, func(it orders.LineItem, _ int) string { return it.BookID }))
	books, err := s.Catalog.GetBooks(ctx, ids)
	if err != nil {
		if s.Cache != nil {
			// allow the redelivery to be processed
			_ = s.Cache.Del(ctx, redisx.DedupKey(s.ServiceName, env.EventID))
		}
		return fmt.Errorf("GetBooks: %w", err)
	}

	for _, b := range LowStock(books, s.Threshold) {
		log.Warn().Str("bookId", b.ID).Int("stock", b.StockQuantity).Str("orderId", p.OrderID).Msg("book stock low")
		alert, err := orders.NewEnvelope(ctx, orders.EventStockLow, s.ServiceName, b.ID, orders.StockLowPayload{
			BookID:        b.ID,
			Title:         b.Title,
			StockQuantity: b.StockQuantity,
			Threshold:     s.Threshold,
			OrderID:       p.OrderID,
		})
		if err != nil {
			return err
		}
		alert.TraceID = env.TraceID
		if err := s.Events.Publish(ctx, orders.TopicStockLow, []byte(b.ID), alert); err != nil {
			log.Error().Err(err).Str("bookId", b.ID).Msg("StockLow publish failed")
		}
	}
	return nil
}

// LowStock returns the books at or below threshold.
func LowStock(books []orders.Book, threshold int) []orders.Book {
	return lo.Filter(books, func(b orders.Book, _ int) bool { return b.StockQuantity <= threshold })
}
