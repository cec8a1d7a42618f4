package orders

const (
	TopicOrderPlaced        = "bookstore.order.placed"
	TopicOrderStatusChanged = "bookstore.order.status_changed"
	TopicOrderDeleted       = "bookstore.order.deleted"
	TopicStockLow           = "bookstore.book.stock_low"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
