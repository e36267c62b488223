// Package cache provides the fixed-size LRU used to keep parsed QVD headers
// between loads of the same file.
package cache

import (
	"container/list"
	"expvar"
	"sync"
)

type lruItem[V any] struct {
	key   string
	value V
}

// LRUCache is a fixed-size LRU keyed by string. A capacity of zero or less
// disables it: Put is a no-op and Get neither hits nor misses.
type LRUCache[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	items    map[string]*list.Element

	onHit  func(key string)
	onMiss func(key string)

	hits   *expvar.Int
	misses *expvar.Int
}

// NewLRUCache creates a cache holding up to capacity values. onHit and
// onMiss may be nil.
func NewLRUCache[V any](capacity int, onHit, onMiss func(key string)) *LRUCache[V] {
	return &LRUCache[V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		onHit:    onHit,
		onMiss:   onMiss,
	}
}

// SetMetrics makes the cache count hits and misses into the given counters.
func (c *LRUCache[V]) SetMetrics(hits, misses *expvar.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = hits
	c.misses = misses
}

func (c *LRUCache[V]) Get(key string) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		return value, false
	}
	elem, ok := c.items[key]
	if !ok {
		if c.misses != nil {
			c.misses.Add(1)
		}
		if c.onMiss != nil {
			c.onMiss(key)
		}
		return value, false
	}

	if c.hits != nil {
		c.hits.Add(1)
	}
	if c.onHit != nil {
		c.onHit(key)
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem[V]).value, true
}

// Put adds or replaces the value for key, evicting the least recently used
// entry when the cache is full.
func (c *LRUCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		return
	}
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruItem[V]).value = value
		c.order.MoveToFront(elem)
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.items, c.order.Remove(oldest).(*lruItem[V]).key)
		}
	}
	c.items[key] = c.order.PushFront(&lruItem[V]{key: key, value: value})
}

func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
