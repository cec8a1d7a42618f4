package orders

import (
	"context"
	"time"
)

type Catalog interface {
	ListBooks(ctx context.Context) ([]Book, error)
	GetBooks(ctx context.Context, ids []string) ([]Book, error)
	GetBook(ctx context.Context, id string) (Book, error)
	SeedBooks(ctx context.Context, books ...Book) error
}

type Ledger interface {
	// Reserve checks stock, decrements it and inserts the order as one atomic unit.
	// The bool result is true when an order with the same external id already existed.
	Reserve(ctx context.Context, r Reservation) (Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, orderID string, change StatusChange) (StatusUpdate, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

type Store interface {
	Catalog
	Ledger
}

type StatusChange struct {
	To              Status
	Policy          TransitionPolicy
	RestockOnCancel bool
}

// StatusUpdate is the outcome of an applied StatusChange.
type StatusUpdate struct {
	Order     Order
	From      Status
	Restocked bool // stock was returned by this change
}

// apply mutates o in place. restock reports whether the line items must go back to stock;
// an order gives its stock back at most once, however often it re-enters cancelled.
func (c StatusChange) apply(o *Order, now time.Time) (prev Status, restock bool, err error) {
	policy := c.Policy
	if policy == nil {
		policy = Permissive
	}
	prev = o.Status
	if !policy(prev, c.To) {
		return prev, false, &TransitionError{From: prev, To: c.To}
	}
	restock = c.RestockOnCancel && c.To == StatusCancelled && !o.StockRestored
	if restock {
		o.StockRestored = true
	}
	o.Status = c.To
	o.UpdatedAt = now
	return prev, restock, nil
}

func (f OrderFilter) matches(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.CreatedAfter != nil && o.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && o.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}
