package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"learn.windowlimiter/internal/slidingwindowlog"
	"learn.windowlimiter/metrics"
	"learn.windowlimiter/types"
)

// RateLimitMiddleware admits or refuses requests through one limiter.
type RateLimitMiddleware struct {
	limiter    types.AdmissionController
	metrics    *metrics.RateLimitMetrics
	limiterKey string
	stats      types.StatsRecorder
}

// NewRateLimitMiddleware creates a RateLimitMiddleware. m and stats may be nil.
func NewRateLimitMiddleware(limiter types.AdmissionController, m *metrics.RateLimitMetrics, limiterKey string, stats types.StatsRecorder) *RateLimitMiddleware {
	if m == nil {
		m = metrics.NewRateLimitMetrics()
	}
	return &RateLimitMiddleware{
		limiter:    limiter,
		metrics:    m,
		limiterKey: limiterKey,
		stats:      stats,
	}
}

// Handle wraps next with rate limiting. identifierFunc extracts the
// identifier (e.g. the client IP) from the request.
func (m *RateLimitMiddleware) Handle(next http.HandlerFunc, identifierFunc func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := identifierFunc(r)
		if identifier == "" {
			log.Warn().Str("limiter_key", m.limiterKey).Str("remote_addr", r.RemoteAddr).Msg("Middleware: Could not extract identifier, denying request")
			m.metrics.RecordRequest(false)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		allowed, err := m.limiter.Allow(r.Context(), identifier)
		if err != nil {
			log.Error().Err(err).Str("limiter_key", m.limiterKey).Str("identifier", identifier).Msg("Middleware: Error checking rate limit, denying request")
			m.metrics.RecordRequest(false)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		m.metrics.RecordRequest(allowed)
		m.recordStats(r, identifier, allowed)

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(m.limiter.Limit(), 10))
		if allowed {
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(m.limiter.Remaining(identifier), 10))
			next.ServeHTTP(w, r)
			return
		}

		wait := m.limiter.WaitUntilAllowed(identifier)
		m.metrics.ObserveRetryAfter(wait)
		retryAfter := slidingwindowlog.RetryAfterSeconds(wait)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		log.Debug().Str("limiter_key", m.limiterKey).Str("identifier", identifier).Int("retry_after", retryAfter).Msg("Middleware: Request rate limited")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	}
}

// Wrap adapts Handle to the func(http.Handler) http.Handler shape routers use.
func (m *RateLimitMiddleware) Wrap(identifierFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Handle(next.ServeHTTP, identifierFunc)
	}
}

func (m *RateLimitMiddleware) recordStats(r *http.Request, identifier string, allowed bool) {
	if m.stats == nil {
		return
	}
	ev := types.StatsEvent{
		Limiter:    m.limiterKey,
		Identifier: identifier,
		Allowed:    allowed,
		Method:     r.Method,
		Path:       r.URL.Path,
		At:         time.Now(),
	}
	if err := m.stats.Record(r.Context(), ev); err != nil {
		log.Warn().Err(err).Str("limiter_key", m.limiterKey).Msg("Middleware: Failed to record stats")
	}
}
