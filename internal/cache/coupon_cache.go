package cache

import (
	"context"
	"sync"
	"time"
)

// CodeCache maps a remote discount id to the coupon code it was created for.
type CodeCache interface {
	Get(ctx context.Context, discountID string) (string, bool)
	Set(ctx context.Context, discountID, code string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

type CouponCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	store map[string]entry
	now   func() time.Time
}

// NewCouponCache returns an in-process cache. A non-positive ttl keeps entries forever.
func NewCouponCache(ttl time.Duration) *CouponCache {
	return &CouponCache{
		ttl:   ttl,
		store: make(map[string]entry),
		now:   time.Now,
	}
}

func (c *CouponCache) Get(_ context.Context, discountID string) (string, bool) {
	c.mu.RLock()
	e, ok := c.store[discountID]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.store, discountID)
		c.mu.Unlock()
		return "", false
	}
	return e.code, true
}

func (c *CouponCache) Set(_ context.Context, discountID, code string) {
	if discountID == "" || code == "" {
		return
	}
	e := entry{code: code}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[discountID] = e
}
