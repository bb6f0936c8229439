package ingest

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// SeenCache is a shared positive cache of post external ids known to exist
// locally. Misses always fall through to the store; a stale miss only costs
// one query.
type SeenCache interface {
	Seen(externalID string) bool
	MarkSeen(externalID string)
}

// MemcacheSeenCache backs the seen-cache with a memcached shared across
// worker processes.
type MemcacheSeenCache struct {
	client *memcache.Client
	ttl    int32
}

func NewMemcacheSeenCache(client *memcache.Client, ttlSeconds int32) *MemcacheSeenCache {
	return &MemcacheSeenCache{client: client, ttl: ttlSeconds}
}

func (c *MemcacheSeenCache) Seen(externalID string) bool {
	_, err := c.client.Get("seen/" + externalID)
	return err == nil
}

func (c *MemcacheSeenCache) MarkSeen(externalID string) {
	// Best effort: a failed set just means an extra store lookup later.
	_ = c.client.Set(&memcache.Item{
		Key:        "seen/" + externalID,
		Value:      []byte{1},
		Expiration: c.ttl,
	})
}

// NopSeenCache disables the cache layer.
type NopSeenCache struct{}

func (NopSeenCache) Seen(string) bool { return false }
func (NopSeenCache) MarkSeen(string)  {}
