package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCart       = errors.New("invalid cart")
	ErrBookNotFound      = errors.New("book not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrUnauthorized      = errors.New("unauthorized")

	errNoItems      = errors.New("no items in order")
	errOrderIDEmpty = errors.New("orderID is empty")
)

// CartError reports the first cart field that failed validation.
type CartError struct {
	Field  string
	Reason string
}

func (e *CartError) Error() string {
	return fmt.Sprintf("invalid cart: %s: %s", e.Field, e.Reason)
}

func (e *CartError) Is(target error) bool { return target == ErrInvalidCart }

type BookNotFoundError struct {
	BookIDs []string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book not found: %s", strings.Join(e.BookIDs, ", "))
}

func (e *BookNotFoundError) Is(target error) bool { return target == ErrBookNotFound }

type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("book %s (available %d, requested %d, short %d)", s.BookID, s.Available, s.Requested, s.Shortfall()))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransitionError is returned when the active policy refuses a status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
