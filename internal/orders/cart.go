package orders

import (
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	BookID    string          `json:"id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

type Cart struct {
	Items           []CartItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	IdempotencyKey  string          `json:"-"`
}

// Reservation is a validated cart, ready to be committed against live stock.
type Reservation struct {
	UserID              string
	ExternalID          string
	Items               []LineItem
	ShippingAddress     ShippingAddress
	PaymentMethod       PaymentMethod
	TotalAmount         decimal.Decimal
	EnforceCatalogPrice bool
}

// Validate checks the cart shape without touching storage.
func (c Cart) Validate(userID string) (Reservation, error) {
	var r Reservation

	if strings.TrimSpace(userID) == "" {
		return r, ErrUnauthorized
	}
	if len(c.Items) == 0 {
		return r, &CartError{Field: "items", Reason: "must be a non-empty list"}
	}

	items := make([]LineItem, 0, len(c.Items))
	sum := decimal.Zero
	for i, it := range c.Items {
		if strings.TrimSpace(it.BookID) == "" {
			return r, &CartError{Field: itemField(i, "id"), Reason: "is required"}
		}
		if it.Quantity <= 0 {
			return r, &CartError{Field: itemField(i, "quantity"), Reason: "must be a positive integer"}
		}
		if !it.UnitPrice.IsPositive() {
			return r, &CartError{Field: itemField(i, "price"), Reason: "must be positive"}
		}
		li := LineItem{BookID: it.BookID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		sum = sum.Add(li.Subtotal())
		items = append(items, li)
	}

	if err := c.ShippingAddress.validate(); err != nil {
		return r, err
	}

	pm, ok := ParsePaymentMethod(c.PaymentMethod)
	if !ok {
		return r, &CartError{Field: "payment_method", Reason: "must be card or cash_on_delivery"}
	}

	if c.TotalAmount.IsNegative() {
		return r, &CartError{Field: "total_amount", Reason: "must be non-negative"}
	}
	if !c.TotalAmount.Equal(sum) {
		return r, &CartError{Field: "total_amount", Reason: "does not match the sum of line items (" + sum.StringFixed(2) + ")"}
	}

	return Reservation{
		UserID:          userID,
		ExternalID:      strings.TrimSpace(c.IdempotencyKey),
		Items:           items,
		ShippingAddress: c.ShippingAddress,
		PaymentMethod:   pm,
		TotalAmount:     c.TotalAmount,
	}, nil
}

func (a ShippingAddress) validate() error {
	required := []struct{ field, value string }{
		{"shipping_address.line1", a.Line1},
		{"shipping_address.city", a.City},
		{"shipping_address.state", a.State},
		{"shipping_address.postal_code", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &CartError{Field: f.field, Reason: "is required"}
		}
	}
	return nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

// Demand sums the requested quantity per distinct book id.
func (r Reservation) Demand() map[string]int {
	demand := make(map[string]int, len(r.Items))
	for _, it := range r.Items {
		demand[it.BookID] += it.Quantity
	}
	return demand
}

// BookIDs returns the distinct book ids in ascending order, the order rows are locked in.
func (r Reservation) BookIDs() []string {
	ids := lo.Uniq(lo.Map(r.Items, func(it LineItem, _ int) string { return it.BookID }))
	slices.Sort(ids)
	return ids
}

// checkStock evaluates the reservation against a snapshot of the referenced books.
// It must run inside the same atomic unit as the decrement.
func checkStock(r Reservation, books map[string]Book) error {
	var missing []string
	var shortages []StockShortage

	demand := r.Demand()
	for _, id := range r.BookIDs() {
		b, ok := books[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if b.StockQuantity < demand[id] {
			shortages = append(shortages, StockShortage{BookID: id, Requested: demand[id], Available: b.StockQuantity})
		}
	}

	if len(missing) > 0 {
		return &BookNotFoundError{BookIDs: missing}
	}
	if len(shortages) > 0 {
		return &InsufficientStockError{Shortages: shortages}
	}

	if r.EnforceCatalogPrice {
		for i, it := range r.Items {
			if !it.UnitPrice.Equal(books[it.BookID].Price) {
				return &CartError{Field: itemField(i, "price"), Reason: "price_mismatch: catalog price is " + books[it.BookID].Price.String()}
			}
		}
	}

	return nil
}
