package proxy

import (
	"sync"
	"time"
)

type cacheEntry struct {
	page    *upstreamPage
	created time.Time
}

// pageCache holds fetched list pages per client for a short while, so pager
// clicks only cost the rows request.
type pageCache struct {
	mu   sync.RWMutex
	now  func() time.Time
	ttl  time.Duration
	data map[string]cacheEntry
}

func newPageCache(now func() time.Time, ttl time.Duration) *pageCache {
	if now == nil {
		now = time.Now
	}
	return &pageCache{
		now:  now,
		ttl:  ttl,
		data: make(map[string]cacheEntry),
	}
}

func cacheKey(clientKey, target string) string {
	return clientKey + "|" + target
}

func (c *pageCache) Store(clientKey, target string, page *upstreamPage) {
	if c.ttl <= 0 || page == nil || len(page.Body) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.created) >= c.ttl {
			delete(c.data, k)
		}
	}
	c.data[cacheKey(clientKey, target)] = cacheEntry{page: page, created: now}
}

func (c *pageCache) Select(clientKey, target string) (*upstreamPage, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.data[cacheKey(clientKey, target)]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.created) >= c.ttl {
		return nil, false
	}
	return entry.page, true
}
