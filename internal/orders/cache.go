package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/cartsync/pkg/redis"
)

const defaultCacheTTL = 30 * time.Second

// Cache keeps the last fetched order per outlet and session.
type Cache struct {
	store redis.JSONStore
	ttl   time.Duration
}

func NewCache(store redis.JSONStore, ttl time.Duration) *Cache {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Get returns the cached order. The bool is false on a miss.
func (c *Cache) Get(ctx context.Context, ref OrderRef) (*Order, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	var order Order
	found, err := c.store.GetJSON(ctx, c.key(ref), &order)
	if err != nil || !found {
		return nil, false, err
	}
	return &order, true, nil
}

// Put stores order; a nil order drops the entry.
func (c *Cache) Put(ctx context.Context, ref OrderRef, order *Order) error {
	if c == nil {
		return nil
	}
	if order == nil {
		return c.Invalidate(ctx, ref)
	}
	return c.store.SetJSON(ctx, c.key(ref), order, c.ttl)
}

func (c *Cache) Invalidate(ctx context.Context, ref OrderRef) error {
	if c == nil {
		return nil
	}
	return c.store.Del(ctx, c.key(ref))
}

func (c *Cache) key(ref OrderRef) string {
	return c.store.OrderKey(ref.OutletRef, ref.SessionID)
}
