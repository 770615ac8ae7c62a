package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"SupplyGuard/internal/backend"
)

// CachedReply represents a cached assistant reply
type CachedReply struct {
	Reply     string
	Timestamp time.Time
}

// ReplyCache holds assistant replies keyed by conversation hash.
// A zero TTL disables the cache.
type ReplyCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// NewReplyCache creates a cache whose entries expire after ttl
func NewReplyCache(ttl time.Duration) *ReplyCache {
	return &ReplyCache{ttl: ttl, now: time.Now}
}

// Enabled reports whether replies are cached at all
func (c *ReplyCache) Enabled() bool {
	return c != nil && c.ttl > 0
}

// Get returns the cached reply for key. Expired entries are evicted on read.
func (c *ReplyCache) Get(key string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}
	v, ok := c.entries.Load(key)
	if !ok {
		return "", false
	}
	entry := v.(CachedReply)
	if c.now().Sub(entry.Timestamp) >= c.ttl {
		c.entries.CompareAndDelete(key, v)
		return "", false
	}
	return entry.Reply, true
}

// Put stores reply under key
func (c *ReplyCache) Put(key, reply string) {
	if !c.Enabled() {
		return
	}
	c.entries.Store(key, CachedReply{Reply: reply, Timestamp: c.now()})
}

// GenerateCacheKey generates a cache key from the page and the messages
func GenerateCacheKey(page string, messages []backend.ChatMessage) string {
	h := sha256.New()
	h.Write([]byte(page))
	for _, msg := range messages {
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
