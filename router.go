package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/api"
	"learn.windowlimiter/config"
	"learn.windowlimiter/metrics"
	"learn.windowlimiter/middleware"
	"learn.windowlimiter/types"
)

const defaultLimitedResponse = "Limited, don't over use me!"

// newRouter mounts the configured limited routes next to the unlimited,
// status, health and metrics endpoints.
func newRouter(cfg *config.File, limiters map[string]types.AdmissionController, c *metrics.Collectors, gatherer prometheus.Gatherer, stats types.StatsRecorder) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/unlimited", textHandler("Unlimited! Let's Go!"))

	perLimiter := make(map[string]*metrics.RateLimitMetrics, len(limiters))
	for _, rc := range cfg.Routes {
		limiter, err := api.Lookup(limiters, rc.Limiter)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", rc.Path, err)
		}
		m, ok := perLimiter[rc.Limiter]
		if !ok {
			m = c.ForLimiter(rc.Limiter)
			perLimiter[rc.Limiter] = m
		}

		body := rc.Response
		if body == "" {
			body = defaultLimitedResponse
		}
		mw := middleware.NewRateLimitMiddleware(limiter, m, rc.Limiter, stats)
		r.With(mw.Wrap(middleware.HeaderIdentifier(rc.IdentifierHeader))).Handle(rc.Path, textHandler(body))
		log.Info().Str("path", rc.Path).Str("limiter_key", rc.Limiter).Msg("Router: Limited route registered")
	}

	r.Get("/limits/{limiter}/{identifier}", middleware.StatusHandler(limiters))
	r.Get("/healthz", textHandler("ok"))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r, nil
}

func textHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, body)
	}
}
