package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/api"
	"learn.windowlimiter/config"
	"learn.windowlimiter/metrics"
	"learn.windowlimiter/types"
)

// Provider functions for the wire graph in wire.go.

func provideConfig(path configPath) (*config.File, error) {
	return api.LoadConfig(string(path))
}

func provideBackendClients(cfg *config.File) (types.BackendClients, func(), error) {
	clients, err := api.NewBackendClients(cfg)
	if err != nil {
		return types.BackendClients{}, nil, err
	}
	cleanup := func() {
		if err := api.NewBackendCloser(clients).Close(); err != nil {
			log.Error().Err(err).Msg("Wire: Error closing backend clients")
		}
	}
	return clients, cleanup, nil
}

func provideLimiterFactory() *api.Factory {
	return api.NewFactory()
}

// provideLimiters builds the limiters; the cleanup stops their janitors.
func provideLimiters(factory *api.Factory, cfg *config.File) (map[string]types.AdmissionController, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	limiters, err := api.NewLimiters(ctx, factory, cfg)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return limiters, cancel, nil
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideCollectors(reg *prometheus.Registry, limiters map[string]types.AdmissionController) (*metrics.Collectors, error) {
	c, err := metrics.NewCollectors(reg)
	if err != nil {
		return nil, err
	}
	for key, limiter := range limiters {
		if err := c.RegisterActiveKeys(key, limiter.ActiveKeys); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func provideStatsRecorder(cfg *config.File, clients types.BackendClients) (types.StatsRecorder, error) {
	return api.NewStatsRecorder(cfg.Stats, clients)
}

func provideRouter(cfg *config.File, limiters map[string]types.AdmissionController, c *metrics.Collectors, reg *prometheus.Registry, stats types.StatsRecorder) (http.Handler, error) {
	return newRouter(cfg, limiters, c, reg, stats)
}
