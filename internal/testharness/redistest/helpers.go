// Package redistest connects integration tests to a real Redis server.
package redistest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// GetRedisAddress returns the Redis address, defaulting to "localhost:6379".
// REDIS_ADDR overrides it, and CI=true selects "redis:6379".
func GetRedisAddress() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	if os.Getenv("CI") == "true" {
		return "redis:6379"
	}
	return "localhost:6379"
}

// SetupRedisClient returns a connected client, or skips the test when no
// server answers. Under CI=true an unreachable server fails the test instead.
func SetupRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := GetRedisAddress()

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		if os.Getenv("CI") == "true" {
			t.Fatalf("Failed to connect to Redis at %s: %v", addr, err)
		}
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// CleanupRedisKeys deletes every key under prefix.
func CleanupRedisKeys(t *testing.T, client *redis.Client, prefix string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pattern := prefix + ":*"
	var toDelete []string
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		toDelete = append(toDelete, iter.Val())
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("Failed to SCAN for keys with pattern '%s': %v", pattern, err)
	}
	if len(toDelete) == 0 {
		return
	}
	if err := client.Del(ctx, toDelete...).Err(); err != nil {
		t.Errorf("Failed to DEL %d keys matching '%s': %v", len(toDelete), pattern, err)
	}
}
