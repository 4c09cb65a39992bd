package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v2"

	"learn.windowlimiter/config"
)

const sampleConfig = `
server:
  port: 9090
logging:
  level: debug
  format: json
stats:
  backend: redis
  ttl: 1h
  track_identifiers: true
  redis_params:
    address: localhost:6379
limiters:
  - key: api_rate_limit
    algorithm: sliding_window_log
    backend: in_memory
    window_params:
      window: 10s
      limit: 5
    shards: 16
    janitor_interval: 30s
  - key: login
    window_params:
      window: 1m
      limit: 3
routes:
  - path: /limited
    limiter: api_rate_limit
  - path: /login
    limiter: login
    identifier_header: X-User-ID
`

func parse(t *testing.T, data string) *config.File {
	t.Helper()
	var cfg config.File
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	cfg.ApplyDefaults()
	return &cfg
}

func TestFile_UnmarshalAndDefaults(t *testing.T) {
	cfg := parse(t, sampleConfig)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != config.DefaultReadTimeout {
		t.Errorf("ReadTimeout = %s, want default", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Stats.Backend != config.Redis || cfg.Stats.TTL != time.Hour {
		t.Errorf("Stats = %+v", cfg.Stats)
	}
	if cfg.Stats.Prefix != config.DefaultStatsPrefix {
		t.Errorf("Stats.Prefix = %q, want default", cfg.Stats.Prefix)
	}
	if len(cfg.Limiters) != 2 {
		t.Fatalf("Limiters = %d, want 2", len(cfg.Limiters))
	}
	api := cfg.Limiters[0]
	if api.WindowParams.Window != 10*time.Second || api.WindowParams.Limit != 5 {
		t.Errorf("api_rate_limit window params = %+v", api.WindowParams)
	}
	if api.Shards != 16 || api.JanitorInterval != 30*time.Second {
		t.Errorf("api_rate_limit shards=%d janitor=%s", api.Shards, api.JanitorInterval)
	}
	login := cfg.Limiters[1]
	if login.Algorithm != config.SlidingWindowLog || login.Backend != config.InMemory {
		t.Errorf("login defaults not applied: %+v", login)
	}
	if cfg.Routes[1].IdentifierHeader != "X-User-ID" {
		t.Errorf("IdentifierHeader = %q", cfg.Routes[1].IdentifierHeader)
	}
}

func TestFile_ValidateAggregatesErrors(t *testing.T) {
	cfg := parse(t, `
logging:
  format: xml
stats:
  backend: memcache
limiters:
  - key: a
    window_params:
      window: 0s
      limit: 1
  - key: a
    window_params:
      window: 1s
      limit: 1
  - window_params:
      window: 1s
      limit: 1
routes:
  - path: nope
    limiter: missing
`)

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors but got nil")
	}
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{
		"logging.format",
		"memcache_params are missing",
		"window must be positive",
		"duplicate key 'a'",
		"missing 'key' field",
		"must start with '/'",
		"unknown limiter 'missing'",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error %q does not mention %q", err.Error(), want)
		}
	}
}

func TestFile_ValidateNoLimiters(t *testing.T) {
	cfg := parse(t, `server: {port: 8080}`)
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "no limiter configurations found") {
		t.Fatalf("Expected missing limiters error, got %v", err)
	}
}

func TestLimiterConfig_Validate(t *testing.T) {
	valid := config.LimiterConfig{
		Key:          "k",
		Algorithm:    config.SlidingWindowLog,
		Backend:      config.InMemory,
		WindowParams: &config.WindowConfig{Window: time.Second, Limit: 1},
	}

	tests := []struct {
		name    string
		mutate  func(c *config.LimiterConfig)
		wantErr string
	}{
		{"Valid", func(c *config.LimiterConfig) {}, ""},
		{"UnknownAlgorithm", func(c *config.LimiterConfig) { c.Algorithm = "token_bucket" }, "unsupported algorithm"},
		{"MissingParams", func(c *config.LimiterConfig) { c.WindowParams = nil }, "window_params are missing"},
		{"ZeroLimit", func(c *config.LimiterConfig) { c.WindowParams = &config.WindowConfig{Window: time.Second} }, "limit must be positive"},
		{"NegativeShards", func(c *config.LimiterConfig) { c.Shards = -1 }, "shards"},
		{"NegativeJanitor", func(c *config.LimiterConfig) { c.JanitorInterval = -time.Second }, "janitor_interval"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestStatsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StatsConfig
		wantErr bool
	}{
		{"None", config.StatsConfig{Backend: config.None}, false},
		{"InMemory", config.StatsConfig{Backend: config.InMemory}, false},
		{"RedisOK", config.StatsConfig{Backend: config.Redis, RedisParams: &config.RedisBackendConfig{Address: "x:1"}}, false},
		{"RedisMissing", config.StatsConfig{Backend: config.Redis}, true},
		{"MemcacheOK", config.StatsConfig{Backend: config.Memcache, MemcacheParams: &config.MemcacheBackendConfig{Addresses: []string{"x:1"}}}, false},
		{"Unknown", config.StatsConfig{Backend: "postgres"}, true},
		{"BadBucket", config.StatsConfig{Backend: config.None, Bucket: "hour"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
