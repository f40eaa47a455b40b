package db

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is a time-boxed key/value cache. Every entry carries its own
// TTL so callers never have to reason about global eviction policy,
// and the interface leaves room for a distributed implementation
// without touching call sites.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Del(key string)
	// DelPrefix drops every key set under the given prefix. Used to
	// invalidate a user's cached transaction queries after a sync.
	DelPrefix(prefix string)
}

type ristrettoCache struct {
	c *ristretto.Cache
	// ristretto has no key iteration, so keys are tracked per prefix
	// to support DelPrefix.
	keys *prefixIndex
}

func NewCache() (Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache{c: c, keys: newPrefixIndex()}, nil
}

func (r *ristrettoCache) Get(key string) (interface{}, bool) {
	return r.c.Get(key)
}

func (r *ristrettoCache) Set(key string, value interface{}, ttl time.Duration) {
	r.keys.add(key)
	r.c.SetWithTTL(key, value, 1, ttl)
	r.c.Wait()
}

func (r *ristrettoCache) Del(key string) {
	r.keys.remove(key)
	r.c.Del(key)
}

func (r *ristrettoCache) DelPrefix(prefix string) {
	for _, key := range r.keys.take(prefix) {
		r.c.Del(key)
	}
}
