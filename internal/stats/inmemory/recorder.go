// Package statsinmemory records admission decisions in process memory.
// It never expires anything and is meant for development and tests.
package statsinmemory

import (
	"context"
	"strings"
	"sync"

	"learn.windowlimiter/types"
)

// Counters holds allowed and denied totals.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

// Recorder is a types.StatsRecorder backed by maps.
type Recorder struct {
	mu           sync.Mutex
	total        Counters
	byLimiter    map[string]Counters
	byRoute      map[string]Counters
	byIdentifier map[string]Counters

	trackIdentifiers bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTrackIdentifiers enables per-identifier counters. Mind the cardinality.
func WithTrackIdentifiers(track bool) Option {
	return func(r *Recorder) { r.trackIdentifiers = track }
}

// NewRecorder creates an empty Recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		byLimiter:    make(map[string]Counters),
		byRoute:      make(map[string]Counters),
		byIdentifier: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements types.StatsRecorder.
func (r *Recorder) Record(_ context.Context, ev types.StatsEvent) error {
	route := strings.TrimSpace(ev.Method + " " + ev.Path)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.total.add(ev.Allowed)
	bump(r.byLimiter, ev.Limiter, ev.Allowed)
	if route != "" {
		bump(r.byRoute, route, ev.Allowed)
	}
	if r.trackIdentifiers && ev.Identifier != "" {
		bump(r.byIdentifier, ev.Limiter+":"+ev.Identifier, ev.Allowed)
	}
	return nil
}

func bump(m map[string]Counters, key string, allowed bool) {
	c := m[key]
	c.add(allowed)
	m[key] = c
}

// Total returns the counters over all limiters.
func (r *Recorder) Total() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// ByLimiter returns a copy of the per-limiter counters.
func (r *Recorder) ByLimiter() map[string]Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCounters(r.byLimiter)
}

// ByRoute returns a copy of the per-route counters keyed by "METHOD path".
func (r *Recorder) ByRoute() map[string]Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCounters(r.byRoute)
}

// ByIdentifier returns a copy of the per-identifier counters keyed by
// "limiter:identifier". It is empty unless identifiers are tracked.
func (r *Recorder) ByIdentifier() map[string]Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyCounters(r.byIdentifier)
}

func copyCounters(in map[string]Counters) map[string]Counters {
	out := make(map[string]Counters, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
