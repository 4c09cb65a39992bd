// Package statsredis records admission decisions in Redis hashes.
package statsredis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/types"
)

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"
)

// Recorder is a types.StatsRecorder that increments Redis hash fields in one pipeline.
//
// Keys written, with prefix P:
//
//	P:total                          cumulative, never expires
//	P:limiter:<limiter>              cumulative, never expires
//	P:minute:<yyyymmddhhmm>          per minute bucket, expires after ttl
//	P:route                          field "<METHOD path>:<allowed|denied>"
//	P:identifier:<limiter>:<id>      only when identifiers are tracked, expires after ttl
type Recorder struct {
	client *redis.Client

	prefix           string
	ttl              time.Duration
	bucket           string // "minute" or "none"
	trackIdentifiers bool
	nowFunc          func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) { r.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the expiry of time-bucketed and per-identifier keys.
func WithTTL(d time.Duration) Option {
	return func(r *Recorder) { r.ttl = d }
}

// WithBucket selects the time bucketing, "minute" or "none".
func WithBucket(bucket string) Option {
	return func(r *Recorder) { r.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithTrackIdentifiers enables per-identifier hashes.
func WithTrackIdentifiers(track bool) Option {
	return func(r *Recorder) { r.trackIdentifiers = track }
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(nowFunc func() time.Time) Option {
	return func(r *Recorder) { r.nowFunc = nowFunc }
}

// NewRecorder creates a Redis backed Recorder.
func NewRecorder(client *redis.Client, opts ...Option) *Recorder {
	r := &Recorder{
		client:  client,
		prefix:  "windowlimiter:stats",
		ttl:     24 * time.Hour,
		bucket:  "minute",
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	log.Info().Str("backend", "Redis").Str("prefix", r.prefix).Dur("ttl", r.ttl).Str("bucket", r.bucket).Bool("track_identifiers", r.trackIdentifiers).Msg("Stats(Redis): Initialized")
	return r
}

// Record implements types.StatsRecorder.
func (r *Recorder) Record(ctx context.Context, ev types.StatsEvent) error {
	if r == nil || r.client == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = r.nowFunc()
	}
	field := fieldDenied
	if ev.Allowed {
		field = fieldAllowed
	}

	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", field, 1)
	if ev.Limiter != "" {
		pipe.HIncrBy(ctx, r.limiterKey(ev.Limiter), field, 1)
	}

	if r.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if r.ttl > 0 {
			pipe.Expire(ctx, bucketKey, r.ttl)
		}
	}

	if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
		pipe.HIncrBy(ctx, r.prefix+":route", route+":"+field, 1)
	}

	if r.trackIdentifiers {
		if id := strings.TrimSpace(ev.Identifier); id != "" {
			idKey := r.prefix + ":identifier:" + ev.Limiter + ":" + id
			pipe.HIncrBy(ctx, idKey, field, 1)
			if r.ttl > 0 {
				pipe.Expire(ctx, idKey, r.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("backend", "Redis").Str("limiter_key", ev.Limiter).Msg("Stats(Redis): Failed to record decision")
		return fmt.Errorf("record stats in redis for limiter '%s': %w", ev.Limiter, err)
	}
	return nil
}

// LimiterTotals returns the cumulative allowed and denied counts of a limiter.
func (r *Recorder) LimiterTotals(ctx context.Context, limiter string) (allowed, denied int64, err error) {
	fields, err := r.client.HGetAll(ctx, r.limiterKey(limiter)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read stats from redis for limiter '%s': %w", limiter, err)
	}
	if allowed, err = parseCount(fields[fieldAllowed]); err != nil {
		return 0, 0, err
	}
	if denied, err = parseCount(fields[fieldDenied]); err != nil {
		return 0, 0, err
	}
	return allowed, denied, nil
}

func (r *Recorder) limiterKey(limiter string) string {
	return r.prefix + ":limiter:" + limiter
}

func parseCount(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected counter value %q: %w", v, err)
	}
	return n, nil
}
