package vectorindex

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

type loader interface {
	Load(ctx context.Context, sessionID string) (*Index, error)
}

// Cache keeps recently used indexes in memory. Concurrent misses for the same
// session share one Load, which keeps running when the caller that started
// it goes away. Failed loads are not cached.
type Cache struct {
	loader     loader
	items      *gocache.Cache
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
}

// NewCache wraps loader. Entries expire ttl after their last Put or load.
// cacheTotal has a single "result" label and may be nil.
func NewCache(l loader, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Cache {
	return &Cache{
		loader:     l,
		items:      gocache.New(ttl, 2*ttl),
		cacheTotal: cacheTotal,
	}
}

// Get returns the cached index or loads it.
func (c *Cache) Get(ctx context.Context, sessionID string) (*Index, error) {
	if v, ok := c.items.Get(sessionID); ok {
		c.inc("hit")
		return v.(*Index), nil //nolint:forcetypeassert // only *Index is stored
	}
	c.inc("miss")

	// The load outlives any single caller: each waiter gives up on its own ctx.
	ch := c.group.DoChan(sessionID, func() (any, error) {
		ix, err := c.loader.Load(context.WithoutCancel(ctx), sessionID)
		if err != nil {
			return nil, err
		}
		c.items.Set(sessionID, ix, gocache.DefaultExpiration)
		return ix, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load index %s: %w", sessionID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck // loader errors are already wrapped
		}
		return res.Val.(*Index), nil //nolint:forcetypeassert // the loader returns *Index
	}
}

// Put stores a freshly built index.
func (c *Cache) Put(sessionID string, ix *Index) {
	c.items.Set(sessionID, ix, gocache.DefaultExpiration)
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int { return c.items.ItemCount() }

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
