package factory

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"learn.windowlimiter/config"
	swlinmemory "learn.windowlimiter/internal/slidingwindowlog/inmemory"
	"learn.windowlimiter/types"
)

// SlidingWindowLogFactory creates limiters using the Sliding Window Log algorithm.
type SlidingWindowLogFactory struct{}

// NewSlidingWindowLogFactory returns a new SlidingWindowLogFactory instance.
func NewSlidingWindowLogFactory() (*SlidingWindowLogFactory, error) {
	return &SlidingWindowLogFactory{}, nil
}

// CreateLimiter creates a Sliding Window Log limiter based on the configuration.
// Only the in-memory backend is available: limiter state is process local.
func (f *SlidingWindowLogFactory) CreateLimiter(cfg config.LimiterConfig) (types.AdmissionController, error) {
	log.Info().Str("limiter_key", cfg.Key).Str("backend", string(cfg.Backend)).Msg("Factory(SlidingWindowLog): Creating limiter")
	if cfg.WindowParams == nil {
		err := fmt.Errorf("sliding window log parameters are missing in config for key '%s'", cfg.Key)
		log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("Factory(SlidingWindowLog): Creation failed")
		return nil, err
	}

	switch cfg.Backend {
	case config.InMemory, "":
		log.Info().Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Int("shards", cfg.Shards).Msg("Factory(SlidingWindowLog): Creating in-memory limiter")
		limiter, err := swlinmemory.NewLimiter(cfg.Key, cfg.WindowParams.Window, cfg.WindowParams.Limit, swlinmemory.WithShards(cfg.Shards))
		if err != nil {
			log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("Factory(SlidingWindowLog): Creation failed")
			return nil, err
		}
		return limiter, nil
	case config.Redis, config.Memcache:
		err := fmt.Errorf("backend '%s' is not supported for sliding window log for key '%s': limiter state is kept in process", cfg.Backend, cfg.Key)
		log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("Factory(SlidingWindowLog): Creation failed")
		return nil, err
	default:
		err := fmt.Errorf("unsupported backend type '%s' for sliding window log for key '%s'", cfg.Backend, cfg.Key)
		log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("Factory(SlidingWindowLog): Creation failed")
		return nil, err
	}
}
