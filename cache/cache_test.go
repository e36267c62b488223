package cache

import (
	"expvar"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/qvd/header"
)

func TestLRUCache_PutGetEvict(t *testing.T) {
	c := NewLRUCache[int](2, nil, nil)

	c.Put("a", 1)
	c.Put("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "b" is now least recently used.
	c.Put("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Put("a", 10)
	v, _ = c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_Disabled(t *testing.T) {
	misses := 0
	c := NewLRUCache[string](0, nil, func(string) { misses++ })
	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Zero(t, misses)
}

func TestLRUCache_Metrics(t *testing.T) {
	hits := new(expvar.Int)
	misses := new(expvar.Int)
	var hitKeys, missKeys []string

	c := NewLRUCache[int](4, func(k string) { hitKeys = append(hitKeys, k) }, func(k string) { missKeys = append(missKeys, k) })
	c.SetMetrics(hits, misses)

	c.Put("x", 1)
	c.Get("x")
	c.Get("x")
	c.Get("y")
	assert.Equal(t, int64(2), hits.Value())
	assert.Equal(t, int64(1), misses.Value())
	assert.Equal(t, []string{"x", "x"}, hitKeys)
	assert.Equal(t, []string{"y"}, missKeys)
}

func TestHeaderCache_ClonesEntries(t *testing.T) {
	hc := NewHeaderCache(4, nil, nil)
	h := &header.TableHeader{TableName: "T", Fields: []header.FieldDescriptor{{Name: "A", Tags: []string{"t"}}}}
	hc.Put("k", HeaderEntry{Header: h, HeaderLen: 42})

	h.Fields[0].Tags[0] = "mutated"

	got, ok := hc.Get("k")
	require.True(t, ok)
	assert.Equal(t, int64(42), got.HeaderLen)
	assert.Equal(t, "t", got.Header.Fields[0].Tags[0])

	got.Header.TableName = "changed"
	again, _ := hc.Get("k")
	assert.Equal(t, "T", again.Header.TableName)
	assert.Equal(t, 1, hc.LRU().Len())
}

func TestHeaderKey_ChangesWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.qvd")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	info1, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("three"), 0o644))
	require.NoError(t, os.Chtimes(path, time.Now(), info1.ModTime().Add(time.Second)))
	info2, err := os.Stat(path)
	require.NoError(t, err)

	assert.NotEqual(t, HeaderKey(path, info1), HeaderKey(path, info2))
	assert.Equal(t, HeaderKey(path, info2), HeaderKey(path, info2))
}
