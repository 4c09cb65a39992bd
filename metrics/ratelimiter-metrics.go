package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "windowlimiter"

// RateLimitMetrics counts decisions of a single limiter. The atomic counters
// are always kept; Prometheus series are updated when the metrics come from
// Collectors.ForLimiter.
type RateLimitMetrics struct {
	TotalRequests    atomic.Int64
	RejectedRequests atomic.Int64
	AllowedRequests  atomic.Int64

	allowed    prometheus.Counter
	rejected   prometheus.Counter
	retryAfter prometheus.Observer
}

// NewRateLimitMetrics returns counters that are not exported to Prometheus.
func NewRateLimitMetrics() *RateLimitMetrics {
	return &RateLimitMetrics{}
}

// RecordRequest counts one decision.
func (r *RateLimitMetrics) RecordRequest(allowed bool) {
	r.TotalRequests.Add(1)
	if allowed {
		r.AllowedRequests.Add(1)
		if r.allowed != nil {
			r.allowed.Inc()
		}
	} else {
		r.RejectedRequests.Add(1)
		if r.rejected != nil {
			r.rejected.Inc()
		}
	}
}

// ObserveRetryAfter records the wait handed to a refused caller.
func (r *RateLimitMetrics) ObserveRetryAfter(wait time.Duration) {
	if r.retryAfter != nil {
		r.retryAfter.Observe(wait.Seconds())
	}
}

// Collectors owns the Prometheus vectors shared by all limiters.
type Collectors struct {
	reg        prometheus.Registerer
	requests   *prometheus.CounterVec
	retryAfter *prometheus.HistogramVec
}

// NewCollectors registers the limiter metrics on reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Admission decisions by limiter and decision.",
		}, []string{"limiter", "decision"}),
		retryAfter: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_after_seconds",
			Help:      "Wait until the next admission handed to refused callers.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"limiter"}),
	}
	for _, col := range []prometheus.Collector{c.requests, c.retryAfter} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register limiter metrics: %w", err)
		}
	}
	return c, nil
}

// ForLimiter returns metrics bound to the series of limiter.
func (c *Collectors) ForLimiter(limiter string) *RateLimitMetrics {
	return &RateLimitMetrics{
		allowed:    c.requests.WithLabelValues(limiter, "allowed"),
		rejected:   c.requests.WithLabelValues(limiter, "rejected"),
		retryAfter: c.retryAfter.WithLabelValues(limiter),
	}
}

// RegisterActiveKeys exports the live identifier count of limiter as a gauge.
func (c *Collectors) RegisterActiveKeys(limiter string, activeKeys func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "active_keys",
		Help:        "Identifiers currently holding timestamps in the limiter.",
		ConstLabels: prometheus.Labels{"limiter": limiter},
	}, func() float64 { return float64(activeKeys()) })
	if err := c.reg.Register(gauge); err != nil {
		return fmt.Errorf("failed to register active keys gauge for limiter '%s': %w", limiter, err)
	}
	return nil
}
