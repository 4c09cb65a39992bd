//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
)

// InitializeApplication builds the application from the configuration at
// path. The returned cleanup stops limiter janitors and closes backend clients.
func InitializeApplication(path configPath) (*application, func(), error) {
	wire.Build(
		provideConfig,
		provideBackendClients,
		provideLimiterFactory,
		provideLimiters,
		provideRegistry,
		provideCollectors,
		provideStatsRecorder,
		provideRouter,
		wire.Struct(new(application), "*"),
	)
	return nil, nil, nil
}
