package classify

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a small LRU+TTL cache for Layer 3 classification results, keyed
// by the normalised query string. Grounded on ai/cache/lru.go's generic
// LRUCache[K,V] shape (capacity eviction + lazy TTL expiry under a single
// mutex), specialised here to avoid pulling in the teacher's full generic
// cache package for one call site.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	key       string
	value     Result
	expiresAt time.Time
}

// NewCache builds a classification cache bounded by capacity entries, each
// expiring ttl after being set.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached result for key, if present and unexpired.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return Result{}, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores value under key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache) Set(key string, value Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.order.PushFront(entry)
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}
