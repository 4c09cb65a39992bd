// Package statsmemcache records admission decisions as Memcache counters.
package statsmemcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/internal/memcacheiface"
	"learn.windowlimiter/types"
)

const (
	maxKeyLength = 250
	// Expirations above 30 days are read by memcached as unix timestamps.
	maxRelativeExpiration = 30 * 24 * time.Hour
)

// Recorder is a types.StatsRecorder that keeps one counter per
// (scope, decision) pair: P:total:<allowed|denied> and
// P:limiter:<limiter>:<allowed|denied>.
type Recorder struct {
	client memcacheiface.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) { r.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the counter expiry. Zero keeps counters until evicted.
func WithTTL(d time.Duration) Option {
	return func(r *Recorder) { r.ttl = d }
}

// NewRecorder creates a Memcache backed Recorder.
func NewRecorder(client memcacheiface.Client, opts ...Option) *Recorder {
	r := &Recorder{
		client: client,
		prefix: "windowlimiter:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	log.Info().Str("backend", "Memcache").Str("prefix", r.prefix).Dur("ttl", r.ttl).Msg("Stats(Memcache): Initialized")
	return r
}

// Record implements types.StatsRecorder. Memcache has no pipelining, so the
// counters are bumped one by one and the first failure is returned.
func (r *Recorder) Record(_ context.Context, ev types.StatsEvent) error {
	if r == nil || r.client == nil {
		return nil
	}
	keys := []string{r.totalKey(ev.Allowed)}
	if ev.Limiter != "" {
		keys = append(keys, r.limiterKey(ev.Limiter, ev.Allowed))
	}
	for _, key := range keys {
		if err := r.incr(key); err != nil {
			log.Error().Err(err).Str("backend", "Memcache").Str("limiter_key", ev.Limiter).Str("memcache_key", key).Msg("Stats(Memcache): Failed to record decision")
			return fmt.Errorf("record stats in memcache for limiter '%s': %w", ev.Limiter, err)
		}
	}
	return nil
}

// LimiterTotals returns the allowed and denied counts of a limiter. Missing
// counters read as zero.
func (r *Recorder) LimiterTotals(limiter string) (allowed, denied uint64, err error) {
	if allowed, err = r.get(r.limiterKey(limiter, true)); err != nil {
		return 0, 0, err
	}
	if denied, err = r.get(r.limiterKey(limiter, false)); err != nil {
		return 0, 0, err
	}
	return allowed, denied, nil
}

// incr increments key, creating it on a miss. A lost Add race falls back to
// a second Increment.
func (r *Recorder) incr(key string) error {
	_, err := r.client.Increment(key, 1)
	if err == nil {
		return nil
	}
	if !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}

	err = r.client.Add(&memcache.Item{Key: key, Value: []byte("1"), Expiration: r.expiration()})
	if err == nil {
		return nil
	}
	if errors.Is(err, memcache.ErrNotStored) {
		_, err = r.client.Increment(key, 1)
	}
	return err
}

func (r *Recorder) get(key string) (uint64, error) {
	item, err := r.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stats from memcache key '%s': %w", key, err)
	}
	// Incremented values may carry trailing spaces from the server.
	n, err := strconv.ParseUint(strings.TrimSpace(string(item.Value)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected counter value %q in key '%s': %w", item.Value, key, err)
	}
	return n, nil
}

func (r *Recorder) expiration() int32 {
	ttl := r.ttl
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		ttl = maxRelativeExpiration
	}
	return int32(ttl / time.Second)
}

func (r *Recorder) totalKey(allowed bool) string {
	return r.prefix + ":total:" + decision(allowed)
}

func (r *Recorder) limiterKey(limiter string, allowed bool) string {
	return sanitizeKey(r.prefix + ":limiter:" + limiter + ":" + decision(allowed))
}

func decision(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// sanitizeKey replaces whitespace and control characters, which the memcache
// text protocol rejects, and hashes keys that exceed the length limit.
func sanitizeKey(key string) string {
	key = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, key)
	if len(key) <= maxKeyLength {
		return key
	}
	return fmt.Sprintf("%s:%016x", key[:maxKeyLength-17], xxhash.Sum64String(key))
}
