package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/pos-terminal/internal/catalog"
	"github.com/redis/go-redis/v9"
	"time"
)

// ProductCache is a cache-aside copy of the full product list. A nil
// *ProductCache is valid and caches nothing.
type ProductCache struct {
	RDB redis.Cmdable
	TTL time.Duration
}

func NewProductCache(rdb redis.Cmdable, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = TTLProducts
	}
	return &ProductCache{RDB: rdb, TTL: ttl}
}

// GetProducts reports ok=false on a miss.
func (c *ProductCache) GetProducts(ctx context.Context) ([]catalog.Product, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.RDB.Get(ctx, KeyProducts).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ps []catalog.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		// stale or foreign value, treat as a miss
		return nil, false, nil
	}
	return ps, true, nil
}

func (c *ProductCache) SetProducts(ctx context.Context, ps []catalog.Product) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, KeyProducts, b, c.TTL).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.RDB.Del(ctx, KeyProducts).Err()
}
