// Package cache implements a bounded, TTL-expiring, byte-accounted LRU
// store. It knows nothing about notes or links; Othala runs two
// independent instances, one for raw note content and one for
// serialized query results.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	ItemCount          int     `json:"item_count"`
	TotalSize          int64   `json:"total_size"`
	MaxSize            int64   `json:"max_size"`
	AverageAccessCount float64 `json:"average_access_count"`
}

type entry[V any] struct {
	key          string
	value        V
	size         int64
	lastAccessed time.Time
	accessCount  int64
}

// Cache is a generic key-value store bounded by total byte size and
// item count, with lazy TTL expiry. Entries expire once ttl has
// elapsed since their last access; expiry is checked on every touch,
// so no background sweeper is needed.
//
// All methods take an internal lock: the vault's batch scans read
// through a shared instance from a bounded pool of goroutines, and the
// eviction bookkeeping would otherwise lose updates.
type Cache[V any] struct {
	mu       sync.Mutex
	maxSize  int64
	maxItems int
	ttl      time.Duration

	order   *list.List // front = least recently used
	entries map[string]*list.Element
	size    int64

	now func() time.Time // overridable in tests
}

// New constructs a cache. A negative maxSize or non-positive maxItems
// or ttl is a configuration error. A maxSize of exactly 0 is legal and
// yields a permanently empty cache (every Set no-ops).
func New[V any](maxSize int64, maxItems int, ttl time.Duration) (*Cache[V], error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("cache: negative max size %d", maxSize)
	}
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache: non-positive max items %d", maxItems)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: non-positive ttl %s", ttl)
	}
	return &Cache[V]{
		maxSize:  maxSize,
		maxItems: maxItems,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}, nil
}

// Get returns the cached value for key. An entry past its TTL is
// treated as a miss and purged. A hit refreshes recency and bumps the
// access count.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.remove(el)
		return zero, false
	}
	e.lastAccessed = c.now()
	e.accessCount++
	c.order.MoveToBack(el)
	return e.value, true
}

// Has reports whether key is present and unexpired, without refreshing
// recency. An expired entry is purged as a side effect, same as Get.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expired(el.Value.(*entry[V])) {
		c.remove(el)
		return false
	}
	return true
}

// Set stores value under key, accounting size bytes against the cache
// budget. A size larger than the whole budget is silently rejected so
// one oversized value cannot evict everything else. Negative sizes are
// clamped to 0. Eviction order: expired entries first, then least
// recently used.
func (c *Cache[V]) Set(key string, value V, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size < 0 {
		size = 0
	}
	if size > c.maxSize {
		return
	}
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}

	c.purgeExpired()
	for c.size+size > c.maxSize || c.order.Len() >= c.maxItems {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}

	el := c.order.PushBack(&entry[V]{
		key:          key,
		value:        value,
		size:         size,
		lastAccessed: c.now(),
		accessCount:  0,
	})
	c.entries[key] = el
	c.size += size
}

// Delete removes key, refunding its size. It reports whether an entry
// existed (expired or not).
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// Clear drops every entry and resets the accounted size.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.size = 0
}

// GetStats returns current accounting numbers.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var accesses int64
	for el := c.order.Front(); el != nil; el = el.Next() {
		accesses += el.Value.(*entry[V]).accessCount
	}
	avg := 0.0
	if n := c.order.Len(); n > 0 {
		avg = float64(accesses) / float64(n)
	}
	return Stats{
		ItemCount:          c.order.Len(),
		TotalSize:          c.size,
		MaxSize:            c.maxSize,
		AverageAccessCount: avg,
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.lastAccessed) > c.ttl
}

func (c *Cache[V]) purgeExpired() {
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry[V])) {
			c.remove(el)
		}
		el = next
	}
}

func (c *Cache[V]) remove(el *list.Element) {
	e := el.Value.(*entry[V])
	c.order.Remove(el)
	delete(c.entries, e.key)
	c.size -= e.size
	if c.size < 0 {
		c.size = 0
	}
}
