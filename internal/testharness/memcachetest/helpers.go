// Package memcachetest connects integration tests to a real memcached.
package memcachetest

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// GetMemcachedAddress returns the memcached address, defaulting to "localhost:11211".
// MEMCACHED_ADDR overrides it, and CI=true selects "memcached:11211".
func GetMemcachedAddress() string {
	if addr := os.Getenv("MEMCACHED_ADDR"); addr != "" {
		return addr
	}
	if os.Getenv("CI") == "true" {
		return "memcached:11211"
	}
	return "localhost:11211"
}

// SetupMemcachedClient returns a connected client, or skips the test when
// no server answers. Under CI=true an unreachable server fails the test instead.
func SetupMemcachedClient(t *testing.T) *memcache.Client {
	t.Helper()
	addr := GetMemcachedAddress()

	mc := memcache.New(addr)
	mc.Timeout = time.Second

	// The client has no ping; a throwaway Set stands in for one.
	if err := mc.Set(&memcache.Item{Key: "ping_test", Value: []byte("1"), Expiration: 10}); err != nil {
		if os.Getenv("CI") == "true" {
			t.Fatalf("Failed to connect to Memcached at %s: %v", addr, err)
		}
		t.Skipf("Memcached not available at %s: %v", addr, err)
	}
	_ = mc.Delete("ping_test")
	return mc
}

// CleanupMemcachedKeys deletes keys, ignoring misses.
func CleanupMemcachedKeys(t *testing.T, client *memcache.Client, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			t.Logf("Warning: Failed to delete Memcached key '%s': %v", key, err)
		}
	}
}
