package cache

import (
	"fmt"
	"os"

	"github.com/INLOpen/qvd/header"
)

// HeaderEntry is a cached parse of one file's header.
type HeaderEntry struct {
	Header *header.TableHeader
	// HeaderLen is the byte length of the header text, excluding the
	// delimiter.
	HeaderLen int64
}

// HeaderCache maps file identity to its parsed header. Entries are cloned
// on the way in and out so callers can never mutate a cached header.
type HeaderCache struct {
	lru *LRUCache[HeaderEntry]
}

// NewHeaderCache returns a cache holding up to capacity headers. onHit and
// onMiss may be nil.
func NewHeaderCache(capacity int, onHit, onMiss func(key string)) *HeaderCache {
	return &HeaderCache{lru: NewLRUCache[HeaderEntry](capacity, onHit, onMiss)}
}

// HeaderKey identifies a file version by path, size, and modification time.
// Rewriting the file changes the key, so stale entries are never served.
func HeaderKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

func (c *HeaderCache) Get(key string) (HeaderEntry, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return HeaderEntry{}, false
	}
	return HeaderEntry{Header: e.Header.Clone(), HeaderLen: e.HeaderLen}, true
}

func (c *HeaderCache) Put(key string, e HeaderEntry) {
	c.lru.Put(key, HeaderEntry{Header: e.Header.Clone(), HeaderLen: e.HeaderLen})
}

// LRU exposes the underlying cache for metrics wiring.
func (c *HeaderCache) LRU() *LRUCache[HeaderEntry] { return c.lru }
