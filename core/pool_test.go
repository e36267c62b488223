package core

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool(t *testing.T) {
	t.Run("Get and Put", func(t *testing.T) {
		pool := NewBufferPool(16, 4)

		buf := pool.Get()
		require.NotNil(t, buf, "Get() should not return a nil buffer")
		assert.GreaterOrEqual(t, buf.Cap(), 16)

		buf.WriteString("hello world")
		assert.Equal(t, "hello world", buf.String())

		pool.Put(buf)
		require.Len(t, pool.items, 1)

		buf2 := pool.Get()
		assert.Equal(t, 0, buf2.Len(), "Reused buffer should be reset (length 0)")
		assert.Same(t, buf, buf2)

		hits, misses, created, idle := pool.GetMetrics()
		assert.Equal(t, uint64(1), hits)
		assert.Equal(t, uint64(1), misses)
		assert.Equal(t, uint64(1), created)
		assert.Equal(t, 0, idle)
	})

	t.Run("Idle buffers are capped", func(t *testing.T) {
		pool := NewBufferPool(0, 2)
		a, b, c := pool.Get(), pool.Get(), pool.Get()
		pool.Put(a)
		pool.Put(b)
		pool.Put(c)
		assert.Len(t, pool.items, 2)
	})

	t.Run("Oversized buffers are dropped", func(t *testing.T) {
		pool := NewBufferPool(16, 4)
		big := pool.Get()
		big.Grow(MaxPooledBufferCapacity + 1)
		pool.Put(big)
		assert.Empty(t, pool.items)

		edge := bytes.NewBuffer(make([]byte, 0, MaxPooledBufferCapacity))
		pool.Put(edge)
		assert.Len(t, pool.items, 1)
	})

	t.Run("Concurrent access", func(t *testing.T) {
		pool := NewBufferPool(8, 8)
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				buf := pool.Get()
				buf.WriteString("x")
				pool.Put(buf)
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, len(pool.items), 8)
	})
}
