// Package swlinmemory provides an in-memory implementation of the Sliding Window Log rate limiting algorithm.
package swlinmemory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gammazero/deque"

	"learn.windowlimiter/internal/slidingwindowlog"
)

// DefaultShards is the number of lock shards used when none is configured.
const DefaultShards = 32

type timeline = deque.Deque[time.Time]

type shard struct {
	mu        sync.Mutex
	timelines map[string]*timeline
}

// WindowStore keeps, per identifier, the chronological timeline of admitted
// requests. An identifier is present only while its timeline is non-empty.
//
// Identifiers are hashed onto shards, each guarded by its own mutex. Every
// operation on an identifier, including the removal of its emptied timeline,
// runs under that identifier's shard lock.
type WindowStore struct {
	window time.Duration
	shards []*shard
	keys   atomic.Int64
}

// NewWindowStore creates a store for the given window. A non-positive shard
// count falls back to DefaultShards.
func NewWindowStore(window time.Duration, shards int) *WindowStore {
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &WindowStore{
		window: window,
		shards: make([]*shard, shards),
	}
	for i := range s.shards {
		s.shards[i] = &shard{timelines: make(map[string]*timeline)}
	}
	return s
}

// Window returns the trailing window the store evicts against.
func (s *WindowStore) Window() time.Duration {
	return s.window
}

// Cleanup evicts every timestamp of key that has left the window at now and
// drops the key once its timeline is empty. Absent keys are ignored.
func (s *WindowStore) Cleanup(key string, now time.Time) {
	sh := s.lock(key)
	defer sh.mu.Unlock()
	s.cleanupLocked(sh, key, now)
}

// Size returns the number of live timestamps for key at now.
func (s *WindowStore) Size(key string, now time.Time) int {
	sh := s.lock(key)
	defer sh.mu.Unlock()
	s.cleanupLocked(sh, key, now)
	return sh.size(key)
}

// Oldest returns the earliest surviving timestamp for key.
func (s *WindowStore) Oldest(key string) (time.Time, bool) {
	sh := s.lock(key)
	defer sh.mu.Unlock()
	return sh.oldest(key)
}

// Append records now at the tail of key's timeline, creating it if needed.
func (s *WindowStore) Append(key string, now time.Time) {
	sh := s.lock(key)
	defer sh.mu.Unlock()
	s.appendLocked(sh, key, now)
}

// Len returns the number of identifiers currently tracked.
func (s *WindowStore) Len() int {
	return int(s.keys.Load())
}

// Sweep runs Cleanup for every tracked identifier and returns how many
// identifiers were dropped.
func (s *WindowStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.timelines {
			if s.cleanupLocked(sh, key, now) {
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// lock returns the shard owning key with its mutex held.
func (s *WindowStore) lock(key string) *shard {
	sh := s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
	sh.mu.Lock()
	return sh
}

func (s *WindowStore) cleanupLocked(sh *shard, key string, now time.Time) bool {
	tl, ok := sh.timelines[key]
	if !ok {
		return false
	}
	cutoff := slidingwindowlog.Cutoff(now, s.window)
	for tl.Len() > 0 && !tl.Front().After(cutoff) {
		tl.PopFront()
	}
	if tl.Len() > 0 {
		return false
	}
	delete(sh.timelines, key)
	s.keys.Add(-1)
	return true
}

func (s *WindowStore) appendLocked(sh *shard, key string, now time.Time) {
	tl, ok := sh.timelines[key]
	if !ok {
		tl = new(timeline)
		sh.timelines[key] = tl
		s.keys.Add(1)
	}
	// A clock that stepped backwards must not break chronological order.
	if tl.Len() > 0 {
		if tail := tl.Back(); now.Before(tail) {
			now = tail
		}
	}
	tl.PushBack(now)
}

func (sh *shard) size(key string) int {
	if tl, ok := sh.timelines[key]; ok {
		return tl.Len()
	}
	return 0
}

func (sh *shard) oldest(key string) (time.Time, bool) {
	tl, ok := sh.timelines[key]
	if !ok || tl.Len() == 0 {
		return time.Time{}, false
	}
	return tl.Front(), true
}
