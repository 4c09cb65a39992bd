package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	apiinternal "learn.windowlimiter/api/internal"
	"learn.windowlimiter/config"
	statsinmemory "learn.windowlimiter/internal/stats/inmemory"
	statsmemcache "learn.windowlimiter/internal/stats/memcache"
	statsredis "learn.windowlimiter/internal/stats/redis"
	"learn.windowlimiter/types"
)

// ErrUnknownLimiter is returned when a limiter key is not configured.
var ErrUnknownLimiter = errors.New("unknown limiter")

// janitor is implemented by limiters that can sweep idle identifiers in the background.
type janitor interface {
	StartJanitor(ctx context.Context, every time.Duration)
}

// LoadConfig reads, defaults and validates the YAML configuration at path.
func LoadConfig(path string) (*config.File, error) {
	cfg, err := apiinternal.LoadConfig(path)
	if err != nil {
		log.Error().Err(err).Str("config_path", path).Msg("API: Error loading configuration")
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

// clientCloser is an internal type that holds backend clients and janitor
// cancel functions, and implements io.Closer.
type clientCloser struct {
	clients types.BackendClients
	cancel  context.CancelFunc
}

// Close stops limiter janitors and gracefully shuts down all initialized backend clients.
func (c *clientCloser) Close() error {
	log.Info().Msg("API: Starting shutdown...")
	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	if c.clients.RedisClient != nil {
		log.Info().Msg("API: Closing Redis client...")
		if err := c.clients.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis client: %w", err))
			log.Error().Err(err).Msg("API: Error closing Redis client")
		} else {
			log.Info().Msg("API: Redis client closed successfully.")
		}
	}
	if c.clients.MemcacheClient != nil {
		// Older gomemcache releases have no Close; idle connections then die with the process.
		if closer, ok := any(c.clients.MemcacheClient).(io.Closer); ok {
			log.Info().Msg("API: Closing Memcache client...")
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close Memcache client: %w", err))
				log.Error().Err(err).Msg("API: Error closing Memcache client")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during client shutdown: %w", errors.Join(errs...))
	}
	log.Info().Msg("API: Shutdown complete.")
	return nil
}

// NewBackendClients initializes the backend clients the stats backend needs.
// Limiters themselves keep their state in process and need no client.
func NewBackendClients(cfg *config.File) (types.BackendClients, error) {
	clients := types.BackendClients{}
	switch cfg.Stats.Backend {
	case config.Redis:
		log.Info().Msg("API: Redis backend required for stats. Initializing Redis client...")
		client, err := apiinternal.InitRedisClient(cfg.Stats.RedisParams)
		if err != nil {
			log.Error().Err(err).Msg("API: Initialization failed: Failed to initialize Redis client")
			return clients, err
		}
		clients.RedisClient = client
	case config.Memcache:
		log.Info().Msg("API: Memcache backend required for stats. Initializing Memcache client...")
		client, err := apiinternal.InitMemcacheClient(cfg.Stats.MemcacheParams)
		if err != nil {
			log.Error().Err(err).Msg("API: Initialization failed: Failed to initialize Memcache client")
			return clients, err
		}
		clients.MemcacheClient = client
	}
	return clients, nil
}

// NewBackendCloser returns an io.Closer that shuts down clients.
func NewBackendCloser(clients types.BackendClients) io.Closer {
	return &clientCloser{clients: clients}
}

// NewStatsRecorder builds the recorder selected by cfg. It returns nil when
// stats are disabled.
func NewStatsRecorder(cfg config.StatsConfig, clients types.BackendClients) (types.StatsRecorder, error) {
	switch cfg.Backend {
	case config.None, "":
		log.Info().Msg("API: Stats recording disabled")
		return nil, nil
	case config.InMemory:
		return statsinmemory.NewRecorder(statsinmemory.WithTrackIdentifiers(cfg.TrackIdentifiers)), nil
	case config.Redis:
		if clients.RedisClient == nil {
			return nil, fmt.Errorf("redis client is required but not provided for redis stats backend")
		}
		return statsredis.NewRecorder(clients.RedisClient,
			statsredis.WithPrefix(cfg.Prefix),
			statsredis.WithTTL(cfg.TTL),
			statsredis.WithBucket(cfg.Bucket),
			statsredis.WithTrackIdentifiers(cfg.TrackIdentifiers),
		), nil
	case config.Memcache:
		if clients.MemcacheClient == nil {
			return nil, fmt.Errorf("memcache client is required but not provided for memcache stats backend")
		}
		return statsmemcache.NewRecorder(clients.MemcacheClient,
			statsmemcache.WithPrefix(cfg.Prefix),
			statsmemcache.WithTTL(cfg.TTL),
		), nil
	default:
		return nil, fmt.Errorf("unsupported stats backend type '%s'", cfg.Backend)
	}
}

// NewLimiters creates every limiter in cfg and starts the janitors of those
// that configure one. Janitors stop when ctx is done.
func NewLimiters(ctx context.Context, factory *Factory, cfg *config.File) (map[string]types.AdmissionController, error) {
	if len(cfg.Limiters) == 0 {
		return nil, fmt.Errorf("no limiter configurations found")
	}

	limiters := make(map[string]types.AdmissionController, len(cfg.Limiters))
	log.Info().Int("count", len(cfg.Limiters)).Msg("API: Creating limiter instances...")
	for _, lc := range cfg.Limiters {
		if lc.Key == "" {
			err := fmt.Errorf("limiter configuration missing 'key' field")
			log.Error().Err(err).Msg("API: Initialization failed for a limiter")
			return nil, err
		}

		limiter, err := factory.CreateLimiter(lc)
		if err != nil {
			err = fmt.Errorf("limiter '%s': failed to create instance: %w", lc.Key, err)
			log.Error().Err(err).Str("limiter_key", lc.Key).Msg("API: Initialization failed for limiter")
			return nil, err
		}

		if j, ok := limiter.(janitor); ok && lc.JanitorInterval > 0 {
			j.StartJanitor(ctx, lc.JanitorInterval)
		}

		limiters[lc.Key] = limiter
		log.Info().Str("limiter_key", lc.Key).Str("algorithm", string(lc.Algorithm)).Str("backend", string(lc.Backend)).Msg("API: Limiter created successfully")
	}

	log.Info().Msg("API: All rate limiters initialized.")
	return limiters, nil
}

// NewLimitersFromConfigPath loads config, initializes any needed backend clients,
// and returns a map of rate limiters, their configs and an io.Closer that
// stops janitors and closes backend clients.
func NewLimitersFromConfigPath(configPath string) (map[string]types.AdmissionController, map[string]config.LimiterConfig, io.Closer, error) {
	log.Info().Str("config_path", configPath).Msg("API: Starting initialization of rate limiters from config path")
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	clients, err := NewBackendClients(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	closer := &clientCloser{clients: clients, cancel: cancel}

	limiters, err := NewLimiters(ctx, NewFactory(), cfg)
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}

	limiterConfigs := make(map[string]config.LimiterConfig, len(cfg.Limiters))
	for _, lc := range cfg.Limiters {
		limiterConfigs[lc.Key] = lc
	}
	return limiters, limiterConfigs, closer, nil
}

// Lookup returns the limiter configured under key.
func Lookup(limiters map[string]types.AdmissionController, key string) (types.AdmissionController, error) {
	limiter, ok := limiters[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownLimiter, key)
	}
	return limiter, nil
}
