package cache

import (
	"testing"
	"time"

	"SupplyGuard/internal/backend"

	"github.com/stretchr/testify/assert"
)

func TestReplyCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewReplyCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Put("k", "cached reply")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "cached reply", got)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestReplyCacheDisabled(t *testing.T) {
	c := NewReplyCache(0)
	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)

	var nilCache *ReplyCache
	assert.False(t, nilCache.Enabled())
	nilCache.Put("k", "v")
}

func TestGenerateCacheKey(t *testing.T) {
	msgs := []backend.ChatMessage{
		{Role: "user", Content: "alerts"},
		{Role: "assistant", Content: "three"},
	}

	key := GenerateCacheKey("dashboard", msgs)
	assert.Len(t, key, 64)
	assert.Equal(t, key, GenerateCacheKey("dashboard", msgs))
	assert.NotEqual(t, key, GenerateCacheKey("suppliers", msgs))

	// field boundaries are part of the key
	a := GenerateCacheKey("", []backend.ChatMessage{{Role: "user", Content: "ab"}})
	b := GenerateCacheKey("", []backend.ChatMessage{{Role: "usera", Content: "b"}})
	assert.NotEqual(t, a, b)
}
