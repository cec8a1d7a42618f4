// Package reporting derives sales and inventory metrics from order and book
// snapshots. Everything here is a pure function of its inputs.
package reporting

import (
	"cmp"
	"slices"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	DefaultLowStockThreshold = 10
	DefaultTopSellers        = 5
	Uncategorized            = "uncategorized"
)

type Options struct {
	Location          *time.Location // calendar for daily/monthly buckets, UTC when nil
	Range             Range
	LowStockThreshold int
	TopSellers        int
	Currency          string
}

type Stats struct {
	Currency  string           `json:"currency,omitempty"`
	Sales     SalesMetrics     `json:"salesReports"`
	Inventory InventoryMetrics `json:"inventoryStatus"`
	Revenue   RevenueAnalytics `json:"revenueAnalytics"`
}

type SalesMetrics struct {
	TotalRevenue      decimal.Decimal            `json:"totalRevenue"`
	TotalOrders       int                        `json:"totalOrders"`
	AverageOrderValue decimal.Decimal            `json:"averageOrderValue"`
	OrdersByStatus    map[orders.Status]int      `json:"ordersByStatus"`
	DailyRevenue      map[string]decimal.Decimal `json:"dailyRevenue"`
	DailyStats        map[string]DayStats        `json:"dailyStats"`
	ActiveCustomers   int                        `json:"activeCustomers"`
}

type DayStats struct {
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type InventoryMetrics struct {
	TotalBooks      int             `json:"totalBooks"`
	LowStockBooks   int             `json:"lowStockBooks"`
	OutOfStockBooks int             `json:"outOfStockBooks"`
	TotalStockValue decimal.Decimal `json:"totalStockValue"`
	BooksByCategory map[string]int  `json:"booksByCategory"`
}

type RevenueAnalytics struct {
	MonthlyRevenue    map[string]decimal.Decimal `json:"monthlyRevenue"`
	TopSellingBooks   []BookSales                `json:"topSellingBooks"`
	RevenueByCategory map[string]decimal.Decimal `json:"revenueByCategory"`
}

type BookSales struct {
	BookID    string          `json:"book_id"`
	Title     string          `json:"title,omitempty"`
	Author    string          `json:"author,omitempty"`
	Category  string          `json:"category,omitempty"`
	TotalSold int             `json:"totalSales"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// OrderStatistics is the sales-only view served to the admin orders screen.
type OrderStatistics struct {
	TotalOrders  int                   `json:"totalOrders"`
	TotalRevenue decimal.Decimal       `json:"totalRevenue"`
	StatusCounts map[orders.Status]int `json:"statusCounts"`
	DailyStats   map[string]DayStats   `json:"dailyStats"`
}

func (s Stats) OrderStatistics() OrderStatistics {
	return OrderStatistics{
		TotalOrders:  s.Sales.TotalOrders,
		TotalRevenue: s.Sales.TotalRevenue,
		StatusCounts: s.Sales.OrdersByStatus,
		DailyStats:   s.Sales.DailyStats,
	}
}

// Compute builds the full metric bundle. Revenue always comes from line-item
// snapshot prices, never from the live catalog.
func Compute(allOrders []orders.Order, books []orders.Book, opts Options) Stats {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	threshold := opts.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	topN := opts.TopSellers
	if topN <= 0 {
		topN = DefaultTopSellers
	}

	catalog := lo.SliceToMap(books, func(b orders.Book) (string, orders.Book) { return b.ID, b })
	selected := lo.Filter(allOrders, func(o orders.Order, _ int) bool { return opts.Range.Contains(o.CreatedAt) })

	return Stats{
		Currency:  opts.Currency,
		Sales:     salesMetrics(selected, loc),
		Inventory: inventoryMetrics(books, threshold),
		Revenue:   revenueAnalytics(selected, catalog, loc, topN),
	}
}

func salesMetrics(list []orders.Order, loc *time.Location) SalesMetrics {
	m := SalesMetrics{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		OrdersByStatus:    map[orders.Status]int{},
		DailyRevenue:      map[string]decimal.Decimal{},
		DailyStats:        map[string]DayStats{},
	}

	customers := map[string]struct{}{}
	for _, o := range list {
		revenue := o.Revenue()
		day := o.CreatedAt.In(loc).Format(time.DateOnly)

		m.TotalRevenue = m.TotalRevenue.Add(revenue)
		m.OrdersByStatus[o.Status]++
		m.DailyRevenue[day] = m.DailyRevenue[day].Add(revenue)

		ds := m.DailyStats[day]
		ds.Orders++
		ds.Revenue = ds.Revenue.Add(revenue)
		m.DailyStats[day] = ds

		customers[o.UserID] = struct{}{}
	}

	m.TotalOrders = len(list)
	m.ActiveCustomers = len(customers)
	if m.TotalOrders > 0 {
		m.AverageOrderValue = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalOrders))).Round(2)
	}
	return m
}

func inventoryMetrics(books []orders.Book, threshold int) InventoryMetrics {
	m := InventoryMetrics{
		TotalBooks:      len(books),
		TotalStockValue: decimal.Zero,
		BooksByCategory: map[string]int{},
	}
	for _, b := range books {
		if b.StockQuantity <= threshold {
			m.LowStockBooks++
		}
		if b.StockQuantity == 0 {
			m.OutOfStockBooks++
		}
		m.TotalStockValue = m.TotalStockValue.Add(b.Price.Mul(decimal.NewFromInt(int64(b.StockQuantity))))
		m.BooksByCategory[categoryOf(b)]++
	}
	return m
}

func revenueAnalytics(list []orders.Order, catalog map[string]orders.Book, loc *time.Location, topN int) RevenueAnalytics {
	ra := RevenueAnalytics{
		MonthlyRevenue:    map[string]decimal.Decimal{},
		TopSellingBooks:   []BookSales{},
		RevenueByCategory: map[string]decimal.Decimal{},
	}

	sales := map[string]*BookSales{}
	for _, o := range list {
		month := o.CreatedAt.In(loc).Format("2006-01")
		ra.MonthlyRevenue[month] = ra.MonthlyRevenue[month].Add(o.Revenue())

		for _, it := range o.Items {
			bs, ok := sales[it.BookID]
			if !ok {
				bs = &BookSales{BookID: it.BookID, Revenue: decimal.Zero}
				sales[it.BookID] = bs
			}
			bs.TotalSold += it.Quantity
			bs.Revenue = bs.Revenue.Add(it.Subtotal())

			category := Uncategorized
			if b, ok := catalog[it.BookID]; ok {
				category = categoryOf(b)
			}
			ra.RevenueByCategory[category] = ra.RevenueByCategory[category].Add(it.Subtotal())
		}
	}

	ranked := lo.MapToSlice(sales, func(_ string, bs *BookSales) BookSales { return *bs })
	slices.SortFunc(ranked, func(a, b BookSales) int {
		if c := cmp.Compare(b.TotalSold, a.TotalSold); c != 0 {
			return c
		}
		return cmp.Compare(a.BookID, b.BookID)
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for i := range ranked {
		if b, ok := catalog[ranked[i].BookID]; ok {
			ranked[i].Title = b.Title
			ranked[i].Author = b.Author
			ranked[i].Category = b.Category
		}
	}
	ra.TopSellingBooks = append(ra.TopSellingBooks, ranked...)
	return ra
}

func categoryOf(b orders.Book) string {
	if b.Category == "" {
		return Uncategorized
	}
	return b.Category
}
