package swlinmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learn.windowlimiter/internal/slidingwindowlog"
)

// Limiter is the in-memory Sliding Window Log limiter. It admits a request for
// an identifier while fewer than limit requests from that identifier were
// admitted within the trailing window.
type Limiter struct {
	key     string // Limiter key from config
	window  time.Duration
	limit   int64
	shards  int
	store   *WindowStore
	nowFunc func() time.Time
}

// NewLimiterOption is a function type for setting options on a Limiter.
type NewLimiterOption func(*Limiter)

// WithClock sets a custom clock (nowFunc) for the Limiter. The clock must not
// move backwards.
func WithClock(nowFunc func() time.Time) NewLimiterOption {
	return func(l *Limiter) {
		l.nowFunc = nowFunc
	}
}

// WithShards sets the number of lock shards of the Limiter's own store.
func WithShards(shards int) NewLimiterOption {
	return func(l *Limiter) {
		l.shards = shards
	}
}

// WithStore makes the Limiter own an existing store instead of creating one.
// The store's window must equal the Limiter's window.
func WithStore(store *WindowStore) NewLimiterOption {
	return func(l *Limiter) {
		l.store = store
	}
}

// NewLimiter creates a new in-memory Sliding Window Log limiter.
// window and limit are fixed for the lifetime of the limiter; non-positive
// values are rejected with slidingwindowlog.ErrInvalidConfig.
func NewLimiter(key string, window time.Duration, limit int64, opts ...NewLimiterOption) (*Limiter, error) {
	if err := slidingwindowlog.Validate(window, limit); err != nil {
		log.Error().Err(err).Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", key).Msg("Limiter: Invalid configuration")
		return nil, fmt.Errorf("limiter '%s': %w", key, err)
	}

	l := &Limiter{
		key:     key,
		window:  window,
		limit:   limit,
		nowFunc: time.Now, // Default clock
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.nowFunc == nil {
		l.nowFunc = time.Now
	}
	if l.store == nil {
		l.store = NewWindowStore(window, l.shards)
	} else if l.store.Window() != window {
		return nil, fmt.Errorf("limiter '%s': %w: store window %s does not match limiter window %s", key, slidingwindowlog.ErrInvalidConfig, l.store.Window(), window)
	}

	log.Info().Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", key).Dur("window", window).Int64("limit", limit).Int("shards", len(l.store.shards)).Msg("Limiter: Initialized")
	return l, nil
}

// Key returns the limiter key from config.
func (l *Limiter) Key() string { return l.key }

// Limit returns the maximum number of requests per window.
func (l *Limiter) Limit() int64 { return l.limit }

// Window returns the trailing window size.
func (l *Limiter) Window() time.Duration { return l.window }

// ActiveKeys returns the number of identifiers with live requests in the store.
func (l *Limiter) ActiveKeys() int { return l.store.Len() }

// CanSend reports whether a request for identifier would be admitted now.
// It evicts expired requests but never records one.
func (l *Limiter) CanSend(identifier string) bool {
	sh := l.store.lock(identifier)
	defer sh.mu.Unlock()

	l.store.cleanupLocked(sh, identifier, l.nowFunc())
	return int64(sh.size(identifier)) < l.limit
}

// Record admits and records a request for identifier if capacity remains.
// The capacity check and the append happen under one lock, so concurrent
// callers can never push an identifier past its limit.
func (l *Limiter) Record(identifier string) bool {
	sh := l.store.lock(identifier)
	defer sh.mu.Unlock()

	// Read the clock under the lock so appends stay in chronological order.
	now := l.nowFunc()
	l.store.cleanupLocked(sh, identifier, now)
	if int64(sh.size(identifier)) >= l.limit {
		return false
	}
	l.store.appendLocked(sh, identifier, now)
	return true
}

// WaitUntilAllowed returns how long until identifier regains capacity, zero if
// it has capacity now. The estimate assumes no other request is recorded for
// identifier in the meantime.
func (l *Limiter) WaitUntilAllowed(identifier string) time.Duration {
	sh := l.store.lock(identifier)
	defer sh.mu.Unlock()

	now := l.nowFunc()
	l.store.cleanupLocked(sh, identifier, now)
	if int64(sh.size(identifier)) < l.limit {
		return 0
	}
	oldest, _ := sh.oldest(identifier)
	return slidingwindowlog.WaitTime(oldest, now, l.window)
}

// Remaining returns how many more requests identifier may make right now.
func (l *Limiter) Remaining(identifier string) int64 {
	sh := l.store.lock(identifier)
	defer sh.mu.Unlock()

	l.store.cleanupLocked(sh, identifier, l.nowFunc())
	remaining := l.limit - int64(sh.size(identifier))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Allow checks if a request is allowed for the given identifier and records it when it is.
// It returns an error only when ctx is already done.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	select {
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Context cancelled during check")
		return false, ctx.Err()
	default:
	}

	if l.Record(identifier) {
		log.Debug().Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Request allowed")
		return true, nil
	}
	log.Debug().Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Request denied")
	return false, nil
}

// Sweep evicts expired requests for every identifier and returns how many
// identifiers were dropped from the store.
func (l *Limiter) Sweep() int {
	return l.store.Sweep(l.nowFunc())
}

// StartJanitor sweeps the store every interval until ctx is done.
// Identifiers that are never queried again are otherwise kept until their next request.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Debug().Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", l.key).Msg("Limiter: Janitor stopped")
				return
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					log.Debug().Str("limiter_type", "SlidingWindowLog").Str("backend", "InMemory").Str("limiter_key", l.key).Int("removed_keys", removed).Int("active_keys", l.ActiveKeys()).Msg("Limiter: Janitor swept expired identifiers")
				}
			}
		}
	}()
}
