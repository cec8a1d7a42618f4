package reporting_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ariefcatur/go-bookstore-orders/internal/orders"
	"github.com/ariefcatur/go-bookstore-orders/internal/reporting"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var decimalEqual = cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) })

func order(id, user string, status orders.Status, at time.Time, items ...orders.LineItem) orders.Order {
	o := orders.Order{ID: id, UserID: user, Status: status, Items: items, CreatedAt: at}
	o.TotalAmount = o.Revenue()
	return o
}

func line(book string, qty int, price string) orders.LineItem {
	return orders.LineItem{BookID: book, Quantity: qty, UnitPrice: dec(price)}
}

func day(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeSales(t *testing.T) {
	list := []orders.Order{
		order("o1", "u1", orders.StatusDelivered, day("2024-01-05T09:00:00Z"), line("B1", 2, "10.00")),
		order("o2", "u2", orders.StatusPending, day("2024-01-05T18:30:00Z"), line("B2", 1, "30.00")),
	}

	stats := reporting.Compute(list, nil, reporting.Options{})

	assert.True(t, stats.Sales.TotalRevenue.Equal(dec("50.00")))
	assert.Equal(t, 2, stats.Sales.TotalOrders)
	assert.True(t, stats.Sales.AverageOrderValue.Equal(dec("25.00")))
	assert.Equal(t, map[orders.Status]int{orders.StatusDelivered: 1, orders.StatusPending: 1}, stats.Sales.OrdersByStatus)
	assert.Empty(t, cmp.Diff(map[string]decimal.Decimal{"2024-01-05": dec("50")}, stats.Sales.DailyRevenue, decimalEqual))
	assert.Empty(t, cmp.Diff(map[string]reporting.DayStats{"2024-01-05": {Orders: 2, Revenue: dec("50")}}, stats.Sales.DailyStats, decimalEqual))
	assert.Equal(t, 2, stats.Sales.ActiveCustomers)
}

func TestComputeRevenueUsesSnapshotPrices(t *testing.T) {
	books := []orders.Book{{ID: "B1", Title: "Dune", Category: "sci-fi", Price: dec("99.00"), StockQuantity: 5}}
	list := []orders.Order{
		order("o1", "u1", orders.StatusShipped, day("2024-02-01T00:00:00Z"), line("B1", 3, "10.00")),
	}

	stats := reporting.Compute(list, books, reporting.Options{})

	assert.True(t, stats.Sales.TotalRevenue.Equal(dec("30")))
	assert.True(t, stats.Revenue.RevenueByCategory["sci-fi"].Equal(dec("30")))
	require.Len(t, stats.Revenue.TopSellingBooks, 1)
	assert.Equal(t, "Dune", stats.Revenue.TopSellingBooks[0].Title)
	assert.True(t, stats.Revenue.TopSellingBooks[0].Revenue.Equal(dec("30")))
}

func TestComputeEmptyLedger(t *testing.T) {
	stats := reporting.Compute(nil, nil, reporting.Options{})

	assert.True(t, stats.Sales.TotalRevenue.IsZero())
	assert.True(t, stats.Sales.AverageOrderValue.IsZero())
	assert.Zero(t, stats.Sales.TotalOrders)
	assert.NotNil(t, stats.Sales.OrdersByStatus)
	assert.NotNil(t, stats.Sales.DailyRevenue)
	assert.NotNil(t, stats.Revenue.MonthlyRevenue)
	assert.NotNil(t, stats.Revenue.TopSellingBooks)
	assert.NotNil(t, stats.Inventory.BooksByCategory)

	b, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"topSellingBooks":[]`)
	assert.Contains(t, string(b), `"ordersByStatus":{}`)
}

func TestComputeIsDeterministic(t *testing.T) {
	list := []orders.Order{
		order("o1", "u1", orders.StatusDelivered, day("2024-01-05T09:00:00Z"), line("B1", 2, "10.00"), line("B2", 1, "5.00")),
		order("o2", "u2", orders.StatusCancelled, day("2024-01-06T09:00:00Z"), line("B3", 2, "7.50")),
	}
	books := []orders.Book{{ID: "B1", Price: dec("10"), StockQuantity: 1}, {ID: "B2", Price: dec("5"), StockQuantity: 50}}

	first, err := json.Marshal(reporting.Compute(list, books, reporting.Options{}))
	require.NoError(t, err)
	second, err := json.Marshal(reporting.Compute(list, books, reporting.Options{}))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestComputeTopSellers(t *testing.T) {
	at := day("2024-03-01T12:00:00Z")
	list := []orders.Order{
		order("o1", "u1", orders.StatusDelivered, at, line("B3", 4, "1.00"), line("B1", 2, "1.00")),
		order("o2", "u1", orders.StatusDelivered, at, line("B2", 4, "1.00"), line("B1", 2, "1.00")),
		order("o3", "u2", orders.StatusPending, at, line("B4", 1, "1.00")),
	}

	stats := reporting.Compute(list, nil, reporting.Options{TopSellers: 3})

	ids := make([]string, 0, len(stats.Revenue.TopSellingBooks))
	for _, bs := range stats.Revenue.TopSellingBooks {
		ids = append(ids, bs.BookID)
	}
	// B1, B2 and B3 tie at 4 units; ties go by id
	assert.Equal(t, []string{"B1", "B2", "B3"}, ids)
	assert.Equal(t, 4, stats.Revenue.TopSellingBooks[0].TotalSold)
}

func TestComputeInventory(t *testing.T) {
	books := []orders.Book{
		{ID: "B1", Category: "fantasy", Price: dec("10.00"), StockQuantity: 0},
		{ID: "B2", Category: "fantasy", Price: dec("2.50"), StockQuantity: 10},
		{ID: "B3", Category: "", Price: dec("1.00"), StockQuantity: 11},
	}

	stats := reporting.Compute(nil, books, reporting.Options{})

	assert.Equal(t, 3, stats.Inventory.TotalBooks)
	assert.Equal(t, 2, stats.Inventory.LowStockBooks)
	assert.Equal(t, 1, stats.Inventory.OutOfStockBooks)
	assert.True(t, stats.Inventory.TotalStockValue.Equal(dec("36.00")))
	assert.Equal(t, map[string]int{"fantasy": 2, reporting.Uncategorized: 1}, stats.Inventory.BooksByCategory)

	stats = reporting.Compute(nil, books, reporting.Options{LowStockThreshold: 5})
	assert.Equal(t, 1, stats.Inventory.LowStockBooks)
}

func TestComputeRangeAndTimezone(t *testing.T) {
	list := []orders.Order{
		order("o1", "u1", orders.StatusDelivered, day("2024-01-04T23:30:00Z"), line("B1", 1, "10.00")),
		order("o2", "u1", orders.StatusDelivered, day("2024-01-06T10:00:00Z"), line("B1", 1, "20.00")),
		order("o3", "u2", orders.StatusDelivered, day("2024-02-01T10:00:00Z"), line("B1", 1, "40.00")),
	}

	rng, err := reporting.ParseRange("2024-01-01", "2024-01-31", time.UTC)
	require.NoError(t, err)
	stats := reporting.Compute(list, nil, reporting.Options{Range: rng})
	assert.Equal(t, 2, stats.Sales.TotalOrders)
	assert.True(t, stats.Sales.TotalRevenue.Equal(dec("30")))
	assert.Equal(t, 1, stats.Sales.ActiveCustomers)
	assert.Empty(t, cmp.Diff(map[string]decimal.Decimal{"2024-01": dec("30")}, stats.Revenue.MonthlyRevenue, decimalEqual))

	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	stats = reporting.Compute(list[:1], nil, reporting.Options{Location: jakarta})
	_, ok := stats.Sales.DailyRevenue["2024-01-05"]
	assert.True(t, ok, "23:30 UTC is already the next day in UTC+7")
}

func TestOrderStatistics(t *testing.T) {
	list := []orders.Order{
		order("o1", "u1", orders.StatusPending, day("2024-01-05T09:00:00Z"), line("B1", 1, "10.00")),
	}
	orderStats := reporting.Compute(list, nil, reporting.Options{}).OrderStatistics()

	assert.Equal(t, 1, orderStats.TotalOrders)
	assert.True(t, orderStats.TotalRevenue.Equal(dec("10")))
	assert.Equal(t, map[orders.Status]int{orders.StatusPending: 1}, orderStats.StatusCounts)
}
