// Package cache provides an in-memory LRU cache with per-entry expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is a thread-safe LRU cache. Entries older than the TTL are
// treated as missing.
type MemoryCache[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lruList  *list.List
	maxItems int
	ttl      time.Duration
	now      func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type cacheItem[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Items     int     `json:"items"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// NewMemoryCache creates a cache holding up to maxItems entries. A zero ttl
// never expires entries; maxItems <= 0 disables caching.
func NewMemoryCache[V any](maxItems int, ttl time.Duration) *MemoryCache[V] {
	return &MemoryCache[V]{
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
		maxItems: maxItems,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the value for key and marks it recently used.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	item := el.Value.(*cacheItem[V])
	if !item.expiry.IsZero() && c.now().After(item.expiry) {
		c.remove(el)
		c.misses++
		return zero, false
	}
	c.lruList.MoveToFront(el)
	c.hits++
	return item.value, true
}

// Set stores value, evicting the least recently used entries when full.
func (c *MemoryCache[V]) Set(key string, value V) {
	if c.maxItems <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	for len(c.items) >= c.maxItems && c.lruList.Len() > 0 {
		c.remove(c.lruList.Back())
		c.evictions++
	}

	item := &cacheItem[V]{key: key, value: value}
	if c.ttl > 0 {
		item.expiry = c.now().Add(c.ttl)
	}
	c.items[key] = c.lruList.PushFront(item)
}

// Delete drops key.
func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of entries, including expired ones not yet collected.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetStats returns cache statistics
func (c *MemoryCache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Items: len(c.items), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// remove must be called with the lock held.
func (c *MemoryCache[V]) remove(el *list.Element) {
	item := el.Value.(*cacheItem[V])
	c.lruList.Remove(el)
	delete(c.items, item.key)
}
