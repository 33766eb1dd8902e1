package orders

import "strconv"

const (
	TopicOrderSubmitted = "pos.order.submitted"
	TopicStockLow       = "pos.stock.low"
)

// Partition key = id, so every event of one order (or product) stays ordered.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
