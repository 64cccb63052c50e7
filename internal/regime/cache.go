package regime

import (
	"fmt"
	"sync"

	"github.com/quantisle/papertrader/models"
)

// Cache memoizes per-bar classifications keyed by series identity and
// bar index. A classification is a pure function of history up to its
// index, so entries never go stale for the same series. Callers running
// distinct series through one process must Clear between runs, otherwise
// colliding series identifiers would serve results computed from another
// series' history.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.RegimeSignal
}

// NewCache returns an empty classification cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.RegimeSignal)}
}

func cacheKey(seriesID string, index int) string {
	return fmt.Sprintf("%s:%d", seriesID, index)
}

// Get returns the cached classification for (seriesID, index) if present
func (c *Cache) Get(seriesID string, index int) (models.RegimeSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sig, ok := c.entries[cacheKey(seriesID, index)]
	return sig, ok
}

// Put stores a classification for (seriesID, index)
func (c *Cache) Put(seriesID string, index int, sig models.RegimeSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(seriesID, index)] = sig
}

// Clear drops every cached classification. Must be called between
// independent backtests sharing this cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.RegimeSignal)
}

// Len reports the number of cached classifications
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
