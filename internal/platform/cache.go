package platform

import (
	"sync"
	"time"

	"weatheredge/pkg/types"
)

// seriesCache holds fetched market lists per (city, date) for a short TTL
// so the fast loops don't re-page the venue between main cycles.
type seriesCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cacheEntry
}

type cacheEntry struct {
	markets   []types.Market
	fetchedAt time.Time
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{ttl: ttl, m: make(map[string]cacheEntry)}
}

func (c *seriesCache) get(key string) ([]types.Market, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.markets, true
}

func (c *seriesCache) put(key string, markets []types.Market) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cacheEntry{markets: markets, fetchedAt: time.Now()}
}
