package statsmemcache_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	statsmemcache "learn.windowlimiter/internal/stats/memcache"
	"learn.windowlimiter/types"
)

// mockMemcacheClient keeps counters in a map unless a func override is set.
type mockMemcacheClient struct {
	AddFunc       func(item *memcache.Item) error
	IncrementFunc func(key string, delta uint64) (uint64, error)
	GetFunc       func(key string) (*memcache.Item, error)

	counters map[string]uint64
	added    map[string]*memcache.Item
}

func newMockMemcacheClient() *mockMemcacheClient {
	return &mockMemcacheClient{
		counters: make(map[string]uint64),
		added:    make(map[string]*memcache.Item),
	}
}

func (m *mockMemcacheClient) Add(item *memcache.Item) error {
	if m.AddFunc != nil {
		return m.AddFunc(item)
	}
	if _, ok := m.counters[item.Key]; ok {
		return memcache.ErrNotStored
	}
	m.added[item.Key] = item
	m.counters[item.Key] = 1
	return nil
}

func (m *mockMemcacheClient) Increment(key string, delta uint64) (uint64, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(key, delta)
	}
	v, ok := m.counters[key]
	if !ok {
		return 0, memcache.ErrCacheMiss
	}
	m.counters[key] = v + delta
	return v + delta, nil
}

func (m *mockMemcacheClient) Get(key string) (*memcache.Item, error) {
	if m.GetFunc != nil {
		return m.GetFunc(key)
	}
	v, ok := m.counters[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return &memcache.Item{Key: key, Value: []byte(strconv.FormatUint(v, 10))}, nil
}

func TestRecorder_RecordAndTotals(t *testing.T) {
	client := newMockMemcacheClient()
	r := statsmemcache.NewRecorder(client, statsmemcache.WithPrefix("stats"), statsmemcache.WithTTL(time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.Record(ctx, types.StatsEvent{Limiter: "api", Allowed: true}); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}
	if err := r.Record(ctx, types.StatsEvent{Limiter: "api", Allowed: false}); err != nil {
		t.Fatalf("Record denied failed: %v", err)
	}

	if got := client.counters["stats:total:allowed"]; got != 3 {
		t.Errorf("stats:total:allowed = %d, want 3", got)
	}
	if item := client.added["stats:limiter:api:allowed"]; item == nil || item.Expiration != 3600 {
		t.Errorf("Expected counter created with 3600s expiration, got %+v", item)
	}

	allowed, denied, err := r.LimiterTotals("api")
	if err != nil {
		t.Fatalf("LimiterTotals failed: %v", err)
	}
	if allowed != 3 || denied != 1 {
		t.Errorf("LimiterTotals = %d/%d, want 3/1", allowed, denied)
	}

	allowed, denied, err = r.LimiterTotals("unknown")
	if err != nil || allowed != 0 || denied != 0 {
		t.Errorf("LimiterTotals(unknown) = %d/%d/%v, want 0/0/nil", allowed, denied, err)
	}
}

func TestRecorder_AddRace(t *testing.T) {
	client := newMockMemcacheClient()
	increments := 0
	client.IncrementFunc = func(key string, delta uint64) (uint64, error) {
		increments++
		if increments == 1 {
			return 0, memcache.ErrCacheMiss
		}
		return 2, nil
	}
	client.AddFunc = func(item *memcache.Item) error {
		// Another process created the counter first.
		return memcache.ErrNotStored
	}

	r := statsmemcache.NewRecorder(client, statsmemcache.WithPrefix("stats"))
	if err := r.Record(context.Background(), types.StatsEvent{Allowed: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if increments != 2 {
		t.Errorf("Increment called %d times, want 2", increments)
	}
}

func TestRecorder_Errors(t *testing.T) {
	client := newMockMemcacheClient()
	client.IncrementFunc = func(key string, delta uint64) (uint64, error) {
		return 0, errors.New("server down")
	}
	r := statsmemcache.NewRecorder(client)

	err := r.Record(context.Background(), types.StatsEvent{Limiter: "api", Allowed: true})
	if err == nil || !strings.Contains(err.Error(), "server down") {
		t.Fatalf("Expected wrapped server error, got %v", err)
	}

	client.GetFunc = func(key string) (*memcache.Item, error) {
		return &memcache.Item{Key: key, Value: []byte("not-a-number")}, nil
	}
	if _, _, err := r.LimiterTotals("api"); err == nil {
		t.Fatal("Expected parse error for a non-numeric counter")
	}
}

func TestRecorder_SanitizesKeys(t *testing.T) {
	client := newMockMemcacheClient()
	r := statsmemcache.NewRecorder(client, statsmemcache.WithPrefix("stats"), statsmemcache.WithTTL(0))

	if err := r.Record(context.Background(), types.StatsEvent{Limiter: "my limiter", Allowed: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	item := client.added["stats:limiter:my_limiter:allowed"]
	if item == nil {
		t.Fatalf("Expected sanitized key, got %v", client.added)
	}
	if item.Expiration != 0 {
		t.Errorf("Expiration = %d, want 0 with no ttl", item.Expiration)
	}

	long := strings.Repeat("x", 400)
	if err := r.Record(context.Background(), types.StatsEvent{Limiter: long, Allowed: false}); err != nil {
		t.Fatalf("Record with long limiter failed: %v", err)
	}
	for key := range client.added {
		if len(key) > 250 {
			t.Errorf("Key longer than 250 bytes: %d", len(key))
		}
	}
	allowed, denied, err := r.LimiterTotals(long)
	if err != nil || allowed != 0 || denied != 1 {
		t.Errorf("LimiterTotals(long) = %d/%d/%v, want 0/1/nil", allowed, denied, err)
	}
}

func TestRecorder_TTLClamp(t *testing.T) {
	client := newMockMemcacheClient()
	r := statsmemcache.NewRecorder(client, statsmemcache.WithPrefix("stats"), statsmemcache.WithTTL(90*24*time.Hour))

	if err := r.Record(context.Background(), types.StatsEvent{Allowed: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if got := client.added["stats:total:allowed"].Expiration; got != 30*24*3600 {
		t.Errorf("Expiration = %d, want %d", got, 30*24*3600)
	}
}
