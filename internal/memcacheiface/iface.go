package memcacheiface

import "github.com/bradfitz/gomemcache/memcache"

// Client defines the Memcache operations the stats recorder needs.
// *memcache.Client satisfies it; tests substitute a mock.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Add(item *memcache.Item) error
	Increment(key string, delta uint64) (newValue uint64, err error)
}

var _ Client = (*memcache.Client)(nil)
