package core

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// bufferPool is a mutex-protected free list of byte buffers. Unlike sync.Pool
// its contents survive garbage collection. It serves the header delimiter
// scan and the header XML serializer.
type bufferPool struct {
	mu       sync.Mutex
	items    []*bytes.Buffer
	capacity int
	maxKept  int

	hits    atomic.Uint64
	misses  atomic.Uint64
	created atomic.Uint64
}

// DefaultBufferCapacity is the initial capacity of a pooled buffer.
const DefaultBufferCapacity = 4 * 1024

// MaxPooledBufferCapacity is the largest buffer Put keeps. Larger buffers,
// such as the accumulator of an oversized header scan, are left to the
// garbage collector.
const MaxPooledBufferCapacity = 1 << 20

// BufferPool is shared by the header delimiter scan and the header
// serializer.
var BufferPool = NewBufferPool(DefaultBufferCapacity, 64)

// NewBufferPool creates a pool whose new buffers start with the given capacity
// and which keeps at most maxKept idle buffers.
func NewBufferPool(capacity, maxKept int) *bufferPool {
	return &bufferPool{capacity: capacity, maxKept: maxKept}
}

// Get retrieves a buffer from the pool. If the pool is empty, it creates a new one.
func (bp *bufferPool) Get() *bytes.Buffer {
	bp.mu.Lock()
	if len(bp.items) == 0 {
		bp.mu.Unlock()
		bp.misses.Add(1)
		bp.created.Add(1)
		return bytes.NewBuffer(make([]byte, 0, bp.capacity))
	}
	item := bp.items[len(bp.items)-1]
	bp.items = bp.items[:len(bp.items)-1]
	bp.mu.Unlock()
	bp.hits.Add(1)
	return item
}

// Put resets buf and returns it to the pool. Buffers beyond maxKept or
// larger than MaxPooledBufferCapacity are dropped.
func (bp *bufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > MaxPooledBufferCapacity {
		return
	}
	buf.Reset()
	bp.mu.Lock()
	if len(bp.items) < bp.maxKept {
		bp.items = append(bp.items, buf)
	}
	bp.mu.Unlock()
}

// GetMetrics returns the current metrics for the pool.
func (bp *bufferPool) GetMetrics() (hits, misses, created uint64, idle int) {
	bp.mu.Lock()
	idle = len(bp.items)
	bp.mu.Unlock()
	return bp.hits.Load(), bp.misses.Load(), bp.created.Load(), idle
}
