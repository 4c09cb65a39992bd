package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// AlgorithmType represents the type of rate limiting algorithm.
type AlgorithmType string

const (
	SlidingWindowLog AlgorithmType = "sliding_window_log"
)

// BackendType represents the storage backend.
type BackendType string

const (
	None     BackendType = "none"
	InMemory BackendType = "in_memory"
	Redis    BackendType = "redis"
	Memcache BackendType = "memcache"
)

// Defaults applied by File.ApplyDefaults.
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultStatsPrefix     = "windowlimiter:stats"
	DefaultStatsTTL        = 24 * time.Hour
	DefaultStatsBucket     = "minute"
)

// File is the top-level structure of the configuration file.
type File struct {
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
	Stats    StatsConfig     `yaml:"stats"`
	Limiters []LimiterConfig `yaml:"limiters"`
	Routes   []RouteConfig   `yaml:"routes"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds the zerolog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// StatsConfig selects where admission decisions are recorded.
type StatsConfig struct {
	Backend          BackendType   `yaml:"backend"`
	Prefix           string        `yaml:"prefix,omitempty"`
	TTL              time.Duration `yaml:"ttl,omitempty"`
	Bucket           string        `yaml:"bucket,omitempty"` // minute or none
	TrackIdentifiers bool          `yaml:"track_identifiers,omitempty"`

	RedisParams    *RedisBackendConfig    `yaml:"redis_params,omitempty"`
	MemcacheParams *MemcacheBackendConfig `yaml:"memcache_params,omitempty"`
}

// LimiterConfig holds the configuration for a single rate limiter instance.
type LimiterConfig struct {
	Algorithm AlgorithmType `yaml:"algorithm"`
	Backend   BackendType   `yaml:"backend"`
	Key       string        `yaml:"key"`

	WindowParams *WindowConfig `yaml:"window_params,omitempty"`

	// Shards is the number of lock shards; 0 uses the limiter default.
	Shards int `yaml:"shards,omitempty"`
	// JanitorInterval enables a periodic sweep of expired identifiers.
	JanitorInterval time.Duration `yaml:"janitor_interval,omitempty"`
}

// WindowConfig holds parameters for window based algorithms.
type WindowConfig struct {
	Window time.Duration `yaml:"window"`
	Limit  int64         `yaml:"limit"`
}

// RouteConfig binds an HTTP path to a limiter.
type RouteConfig struct {
	Path    string `yaml:"path"`
	Limiter string `yaml:"limiter"`
	// IdentifierHeader names a request header carrying the client identity.
	// When empty or absent on a request, the client IP is used.
	IdentifierHeader string `yaml:"identifier_header,omitempty"`
	Response         string `yaml:"response,omitempty"`
}

// RedisBackendConfig holds parameters for the Redis backend.
type RedisBackendConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MemcacheBackendConfig holds parameters for the Memcache backend.
type MemcacheBackendConfig struct {
	Addresses []string `yaml:"addresses"`
}

// ApplyDefaults fills unset fields with their defaults.
func (f *File) ApplyDefaults() {
	if f.Server.Port == 0 {
		f.Server.Port = DefaultPort
	}
	if f.Server.ReadTimeout == 0 {
		f.Server.ReadTimeout = DefaultReadTimeout
	}
	if f.Server.WriteTimeout == 0 {
		f.Server.WriteTimeout = DefaultWriteTimeout
	}
	if f.Server.ShutdownTimeout == 0 {
		f.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if f.Logging.Level == "" {
		f.Logging.Level = DefaultLogLevel
	}
	if f.Logging.Format == "" {
		f.Logging.Format = DefaultLogFormat
	}
	if f.Stats.Backend == "" {
		f.Stats.Backend = None
	}
	if f.Stats.Prefix == "" {
		f.Stats.Prefix = DefaultStatsPrefix
	}
	if f.Stats.TTL == 0 {
		f.Stats.TTL = DefaultStatsTTL
	}
	if f.Stats.Bucket == "" {
		f.Stats.Bucket = DefaultStatsBucket
	}
	for i := range f.Limiters {
		if f.Limiters[i].Algorithm == "" {
			f.Limiters[i].Algorithm = SlidingWindowLog
		}
		if f.Limiters[i].Backend == "" {
			f.Limiters[i].Backend = InMemory
		}
	}
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	var errs []error

	if f.Server.Port < 0 || f.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", f.Server.Port))
	}
	switch strings.ToLower(f.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", f.Logging.Format))
	}
	if err := f.Stats.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(f.Limiters) == 0 {
		errs = append(errs, errors.New("no limiter configurations found"))
	}
	keys := make(map[string]struct{}, len(f.Limiters))
	for i, lc := range f.Limiters {
		if err := lc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("limiters[%d]: %w", i, err))
		}
		if _, dup := keys[lc.Key]; dup && lc.Key != "" {
			errs = append(errs, fmt.Errorf("limiters[%d]: duplicate key '%s'", i, lc.Key))
		}
		keys[lc.Key] = struct{}{}
	}

	paths := make(map[string]struct{}, len(f.Routes))
	for i, rc := range f.Routes {
		if !strings.HasPrefix(rc.Path, "/") {
			errs = append(errs, fmt.Errorf("routes[%d]: path %q must start with '/'", i, rc.Path))
		}
		if _, dup := paths[rc.Path]; dup {
			errs = append(errs, fmt.Errorf("routes[%d]: duplicate path %q", i, rc.Path))
		}
		paths[rc.Path] = struct{}{}
		if _, ok := keys[rc.Limiter]; !ok {
			errs = append(errs, fmt.Errorf("routes[%d]: unknown limiter '%s'", i, rc.Limiter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks a single limiter configuration.
func (c LimiterConfig) Validate() error {
	if c.Key == "" {
		return errors.New("limiter configuration missing 'key' field")
	}
	if c.Algorithm != SlidingWindowLog {
		return fmt.Errorf("limiter '%s': unsupported algorithm type '%s'", c.Key, c.Algorithm)
	}
	if c.WindowParams == nil {
		return fmt.Errorf("limiter '%s': window_params are missing", c.Key)
	}
	if c.WindowParams.Window <= 0 {
		return fmt.Errorf("limiter '%s': window must be positive, got %s", c.Key, c.WindowParams.Window)
	}
	if c.WindowParams.Limit <= 0 {
		return fmt.Errorf("limiter '%s': limit must be positive, got %d", c.Key, c.WindowParams.Limit)
	}
	if c.Shards < 0 {
		return fmt.Errorf("limiter '%s': shards must not be negative", c.Key)
	}
	if c.JanitorInterval < 0 {
		return fmt.Errorf("limiter '%s': janitor_interval must not be negative", c.Key)
	}
	return nil
}

// Validate checks the stats backend selection and its parameters.
func (c StatsConfig) Validate() error {
	switch c.Backend {
	case "", None, InMemory:
	case Redis:
		if c.RedisParams == nil || c.RedisParams.Address == "" {
			return errors.New("stats: redis backend selected but redis_params are missing")
		}
	case Memcache:
		if c.MemcacheParams == nil || len(c.MemcacheParams.Addresses) == 0 {
			return errors.New("stats: memcache backend selected but memcache_params are missing")
		}
	default:
		return fmt.Errorf("stats: unsupported backend type '%s'", c.Backend)
	}
	switch c.Bucket {
	case "", "minute", "none":
	default:
		return fmt.Errorf("stats: bucket %q must be minute or none", c.Bucket)
	}
	return nil
}
