package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_SetGet(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	v, found := cache.Get("a")
	assert.True(t, found)
	assert.Equal(t, 1, v)

	_, found = cache.Get("missing")
	assert.False(t, found)
}

func TestLRUCache_Expiry(t *testing.T) {
	cache := NewLRUCache(10, 10*time.Millisecond)

	cache.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, found := cache.Get("a")
	assert.False(t, found)
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate
	_, _ = cache.Get("a")

	cache.Set("c", 3)
	assert.Equal(t, 2, cache.Len())

	_, found := cache.Get("b")
	assert.False(t, found)
	_, found = cache.Get("a")
	assert.True(t, found)
}

func TestLRUCache_Delete(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Delete("a")

	_, found := cache.Get("a")
	assert.False(t, found)
}
