package redisx

import "time"

const (
	// Cached product list: pos:products -> JSON array
	KeyProducts = "pos:products"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Low stock flag per product: stock_low:{product_id} -> remaining stock
	KeyStockLow = "stock_low:%d"
)

var (
	TTLProducts = time.Minute
	TTLDedup    = 48 * time.Hour
	TTLStockLow = 24 * time.Hour
)
