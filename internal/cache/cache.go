// Package cache implements S4's bounded per-venue symbol cache: LRU
// eviction by symbol, additionally pruned against the active symbol set so
// a delisted symbol cannot linger forever just because it was hot.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Entry is whatever S4 wants to remember about a canonical symbol between
// invocations (e.g. a short rolling-average window).
type Entry struct {
	PriceWindow []float64
}

// VenueCache is one venue's bounded symbol -> Entry cache.
type VenueCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// New builds a VenueCache bounded at size entries.
func New(size int) *VenueCache {
	c, err := lru.New(size)
	if err != nil {
		// lru.New only errors on size <= 0; fall back to a sane default
		// rather than propagate a constructor error for a cache.
		c, _ = lru.New(1024)
	}
	return &VenueCache{lru: c}
}

// Get reads the cached entry for a canonical symbol.
func (c *VenueCache) Get(symbol string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(symbol)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put writes through the cache for a canonical symbol.
func (c *VenueCache) Put(symbol string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(symbol, e)
}

// Prune evicts every cached symbol no longer in the active set.
func (c *VenueCache) Prune(active map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		symbol := k.(string)
		if _, ok := active[symbol]; !ok {
			c.lru.Remove(symbol)
		}
	}
}

// Len reports the current number of cached symbols.
func (c *VenueCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
