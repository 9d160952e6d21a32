// Package app provides application services that orchestrate domain
// logic over the storage ports.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/metrics"
	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/ports"
)

// LimiterService enforces per-user, per-endpoint quotas across the
// minute/hour/day windows. The policy table is fixed at construction
// and immutable for the process lifetime.
type LimiterService struct {
	store    ports.RateLimitStore
	clock    ports.Clock
	policies map[string]ratelimit.Policy
	logger   zerolog.Logger
	metrics  *metrics.Collector // optional
}

// LimiterDeps contains dependencies for LimiterService.
type LimiterDeps struct {
	Store   ports.RateLimitStore
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewLimiterService creates a limiter with the given policy table.
func NewLimiterService(deps LimiterDeps, policies map[string]ratelimit.Policy) *LimiterService {
	// Copy so later mutation of the caller's map cannot leak in.
	table := make(map[string]ratelimit.Policy, len(policies))
	for name, pol := range policies {
		table[name] = pol
	}
	return &LimiterService{
		store:    deps.Store,
		clock:    deps.Clock,
		policies: table,
		logger:   deps.Logger.With().Str("component", "limiter").Logger(),
		metrics:  deps.Metrics,
	}
}

// Policy returns the configured policy for an endpoint.
func (s *LimiterService) Policy(endpoint string) (ratelimit.Policy, bool) {
	pol, ok := s.policies[endpoint]
	return pol, ok
}

// Check evaluates and consumes quota for one request. The read,
// window refresh, limit evaluation, and increment run inside the
// store's atomic update, so concurrent requests for the same key
// cannot overshoot a ceiling.
//
// When the store is unreachable the check fails open: the request is
// allowed and the configured maximums are reported as remaining.
// Feature availability for the speaker outweighs strict quota
// enforcement here; callers must never see an error.
func (s *LimiterService) Check(ctx context.Context, userID, endpoint string) ratelimit.Result {
	pol, ok := s.policies[endpoint]
	if !ok {
		s.countCheck(endpoint, "exempt")
		return ratelimit.Exempt()
	}

	now := s.clock.Now()
	var res ratelimit.Result
	_, err := s.store.Update(ctx, limitKey(userID, endpoint), func(rec ratelimit.Record) (ratelimit.Record, bool) {
		var next ratelimit.Record
		res, next = ratelimit.Check(rec, pol, now)
		return next, res.Allowed
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Msg("rate limit store unavailable, failing open")
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("ratelimit_update").Inc()
			s.metrics.RateLimitFailOpen.WithLabelValues(endpoint).Inc()
		}
		return ratelimit.Maxima(pol)
	}

	if res.Allowed {
		s.countCheck(endpoint, "allowed")
	} else {
		s.countCheck(endpoint, "denied")
		if s.metrics != nil {
			s.metrics.RateLimitDenials.WithLabelValues(endpoint, denialWindow(res.Reason)).Inc()
		}
		s.logger.Debug().
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Str("reason", res.Reason).
			Msg("request denied by rate limit")
	}
	return res
}

// Status reports current quota state without consuming a request.
// Fails open like Check.
func (s *LimiterService) Status(ctx context.Context, userID, endpoint string) ratelimit.Result {
	pol, ok := s.policies[endpoint]
	if !ok {
		return ratelimit.Exempt()
	}

	rec, err := s.store.Get(ctx, limitKey(userID, endpoint))
	if err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Msg("rate limit store unavailable for status read")
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("ratelimit_get").Inc()
		}
		return ratelimit.Maxima(pol)
	}
	return ratelimit.Status(rec, pol, s.clock.Now())
}

func (s *LimiterService) countCheck(endpoint, outcome string) {
	if s.metrics != nil {
		s.metrics.RateLimitChecks.WithLabelValues(endpoint, outcome).Inc()
	}
}

// limitKey builds the store key for a (user, endpoint) pair.
func limitKey(userID, endpoint string) string {
	return userID + ":" + endpoint
}

func denialWindow(reason string) string {
	switch reason {
	case ratelimit.ReasonMinuteExceeded:
		return "minute"
	case ratelimit.ReasonHourExceeded:
		return "hour"
	case ratelimit.ReasonDayExceeded:
		return "day"
	default:
		return "unknown"
	}
}
