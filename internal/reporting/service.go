package reporting

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"golang.org/x/sync/errgroup"
)

type Source interface {
	ListOrders(ctx context.Context, filter orders.OrderFilter) ([]orders.Order, int, error)
	ListBooks(ctx context.Context) ([]orders.Book, error)
}

// Service loads a fresh snapshot per call; nothing is cached between requests.
type Service struct {
	src  Source
	opts Options
}

func NewService(src Source, opts Options) *Service {
	return &Service{src: src, opts: opts}
}

func (s *Service) Dashboard(ctx context.Context, r Range) (Stats, error) {
	var (
		list  []orders.Order
		books []orders.Book
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, _, err = s.src.ListOrders(gctx, orders.OrderFilter{CreatedAfter: r.Start, CreatedBefore: r.End})
		if err != nil {
			return fmt.Errorf("ListOrders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		books, err = s.src.ListBooks(gctx)
		if err != nil {
			return fmt.Errorf("ListBooks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	opts := s.opts
	opts.Range = r
	return Compute(list, books, opts), nil
}

func (s *Service) OrderStatistics(ctx context.Context, r Range) (OrderStatistics, error) {
	stats, err := s.Dashboard(ctx, r)
	if err != nil {
		return OrderStatistics{}, err
	}
	return stats.OrderStatistics(), nil
}
