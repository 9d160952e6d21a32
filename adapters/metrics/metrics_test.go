package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/voxbridge/voxbridge/adapters/metrics"
)

func TestNewWith_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewWith(reg)

	c.RateLimitChecks.WithLabelValues("predict", "allowed").Inc()
	c.RateLimitChecks.WithLabelValues("predict", "allowed").Inc()
	c.RateLimitDenials.WithLabelValues("clone-voice", "minute").Inc()
	c.UsageTracked.WithLabelValues("speak").Inc()

	if got := testutil.ToFloat64(c.RateLimitChecks.WithLabelValues("predict", "allowed")); got != 2 {
		t.Errorf("ratelimit checks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.RateLimitDenials.WithLabelValues("clone-voice", "minute")); got != 1 {
		t.Errorf("denials = %v, want 1", got)
	}

	// Separate registries do not collide.
	_ = metrics.NewWith(prometheus.NewRegistry())
}
