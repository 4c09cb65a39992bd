package api

import (
	"fmt"

	"learn.windowlimiter/config"
	"learn.windowlimiter/internal/factory"
	"learn.windowlimiter/types"
)

// LimiterFactory creates limiters for one algorithm.
type LimiterFactory interface {
	CreateLimiter(cfg config.LimiterConfig) (types.AdmissionController, error)
}

// NewLimiterFactory returns the factory for the algorithm named in cfg.
func NewLimiterFactory(cfg config.LimiterConfig) (LimiterFactory, error) {
	switch cfg.Algorithm {
	case config.SlidingWindowLog:
		return factory.NewSlidingWindowLogFactory()
	default:
		return nil, fmt.Errorf("unsupported algorithm type '%s' for key '%s'", cfg.Algorithm, cfg.Key)
	}
}

// Factory is responsible for creating Limiter instances based on configuration.
type Factory struct{}

// NewFactory creates a new Factory instance.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateLimiter creates a Limiter instance based on the provided configuration.
func (f *Factory) CreateLimiter(cfg config.LimiterConfig) (types.AdmissionController, error) {
	limiterFactory, err := NewLimiterFactory(cfg)
	if err != nil {
		return nil, err
	}
	return limiterFactory.CreateLimiter(cfg)
}
