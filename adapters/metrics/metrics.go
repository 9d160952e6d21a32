// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the gateway.
type Collector struct {
	// Rate limit metrics
	RateLimitChecks   *prometheus.CounterVec // endpoint, outcome: allowed|denied|exempt
	RateLimitDenials  *prometheus.CounterVec // endpoint, window
	RateLimitFailOpen *prometheus.CounterVec // endpoint

	// Usage metering metrics
	UsageTracked *prometheus.CounterVec // endpoint
	UsageCostUSD *prometheus.CounterVec // endpoint
	UsageDropped *prometheus.CounterVec // endpoint

	// Request metrics
	RequestsTotal   *prometheus.CounterVec   // method, status
	RequestDuration *prometheus.HistogramVec // method

	// Store metrics
	StoreFailures *prometheus.CounterVec // op
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on reg (tests use a private
// registry so parallel constructions do not collide).
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RateLimitChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "ratelimit_checks_total",
				Help:      "Total number of rate limit checks",
			},
			[]string{"endpoint", "outcome"},
		),
		RateLimitDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "ratelimit_denials_total",
				Help:      "Total number of denied requests by violated window",
			},
			[]string{"endpoint", "window"},
		),
		RateLimitFailOpen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "ratelimit_fail_open_total",
				Help:      "Checks allowed because the counter store was unavailable",
			},
			[]string{"endpoint"},
		),
		UsageTracked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "usage_tracked_total",
				Help:      "Total number of tracked provider calls",
			},
			[]string{"endpoint"},
		),
		UsageCostUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "usage_cost_usd_total",
				Help:      "Accumulated estimated cost in USD",
			},
			[]string{"endpoint"},
		),
		UsageDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "usage_dropped_total",
				Help:      "Usage records dropped because the store was unavailable",
			},
			[]string{"endpoint"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "requests_total",
				Help:      "Total number of gateway requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "voxbridge",
				Name:      "request_duration_seconds",
				Help:      "Gateway request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		StoreFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voxbridge",
				Name:      "store_failures_total",
				Help:      "Store operations that returned an error",
			},
			[]string{"op"},
		),
	}
}
