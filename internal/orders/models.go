package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Rating        decimal.Decimal `json:"rating"`
	ReviewCount   int             `json:"review_count"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Order struct {
	ID              string          `json:"id"`
	ExternalID      string          `json:"external_id,omitempty"`
	UserID          string          `json:"user_id"`
	Items           []LineItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Status          Status          `json:"status"` // lihat status.go
	TotalAmount     decimal.Decimal `json:"total_amount"`
	StockRestored   bool            `json:"stock_restored,omitempty"` // line items already returned to stock
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LineItem keeps the unit price the customer paid, independent of later catalog changes.
type LineItem struct {
	BookID    string          `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Revenue sums the snapshot prices of the order's line items.
func (o Order) Revenue() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

var paymentAliases = map[string]PaymentMethod{
	"card":             PaymentCard,
	"cash_on_delivery": PaymentCashOnDelivery,
	"cash-on-delivery": PaymentCashOnDelivery,
	"cod":              PaymentCashOnDelivery,
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	pm, ok := paymentAliases[s]
	return pm, ok
}

// StockShortage describes one book that could not cover the requested quantity.
type StockShortage struct {
	BookID    string `json:"book_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Shortfall is the number of units missing.
func (s StockShortage) Shortfall() int { return s.Requested - s.Available }

// OrderFilter has AND semantics across fields.
type OrderFilter struct {
	UserID        string
	Status        Status
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
