// Package types defines common types and interfaces used throughout the rate limiter.
package types

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-redis/redis/v8"
)

// Limiter is the interface that all rate limiting algorithms must implement.
type Limiter interface {
	// Allow checks if a request is allowed for the given key and records it when it is.
	// It returns true if the request is allowed, false otherwise, and an error if any occurred.
	Allow(ctx context.Context, key string) (bool, error)
}

// AdmissionController is a Limiter that also answers queries about a key's
// window without recording anything.
type AdmissionController interface {
	Limiter

	// CanSend reports whether a request for key would be admitted now.
	CanSend(key string) bool
	// Record admits and records a request for key if capacity remains.
	Record(key string) bool
	// WaitUntilAllowed is the time until key regains capacity, zero if it has capacity.
	WaitUntilAllowed(key string) time.Duration
	// Remaining is the number of requests key may still make now.
	Remaining(key string) int64

	Limit() int64
	Window() time.Duration
	// ActiveKeys is the number of keys currently holding state.
	ActiveKeys() int
}

// StatsEvent describes one admission decision.
type StatsEvent struct {
	Limiter    string
	Identifier string
	Allowed    bool

	Method string
	Path   string

	At time.Time
}

// StatsRecorder persists admission decisions. Recording is best-effort:
// callers log failures and carry on.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// BackendClients holds initialized backend client instances.
type BackendClients struct {
	// RedisClient is the Redis client instance.
	RedisClient *redis.Client
	// MemcacheClient is the Memcache client instance.
	MemcacheClient *memcache.Client
}
