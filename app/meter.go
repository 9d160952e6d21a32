package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/metrics"
	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

// MeterService records per-user consumption and its estimated cost.
// Tracking is advisory: a failed write is logged and dropped, never
// surfaced to the request path.
type MeterService struct {
	store   ports.UsageStore
	clock   ports.Clock
	rates   usage.Rates
	logger  zerolog.Logger
	metrics *metrics.Collector // optional
}

// MeterDeps contains dependencies for MeterService.
type MeterDeps struct {
	Store   ports.UsageStore
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewMeterService creates a usage meter with the given cost rates.
func NewMeterService(deps MeterDeps, rates usage.Rates) *MeterService {
	return &MeterService{
		store:   deps.Store,
		clock:   deps.Clock,
		rates:   rates,
		logger:  deps.Logger.With().Str("component", "meter").Logger(),
		metrics: deps.Metrics,
	}
}

// Track records one call against the user's current UTC day bucket.
// The cost estimate is computed here so stored deltas are consistent
// regardless of which handler produced the metrics.
func (s *MeterService) Track(ctx context.Context, userID, endpoint string, m usage.Metrics) {
	now := s.clock.Now()
	delta := usage.Delta{
		Endpoint: endpoint,
		Metrics:  m,
		CostUSD:  usage.Cost(m, s.rates),
	}

	if err := s.store.AddDelta(ctx, userID, usage.DayKey(now), delta, now); err != nil {
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Msg("usage store unavailable, dropping usage record")
		if s.metrics != nil {
			s.metrics.StoreFailures.WithLabelValues("usage_add").Inc()
			s.metrics.UsageDropped.WithLabelValues(endpoint).Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.UsageTracked.WithLabelValues(endpoint).Inc()
		s.metrics.UsageCostUSD.WithLabelValues(endpoint).Add(delta.CostUSD)
	}
}

// Day returns the usage record for one user and day. A day with no
// activity comes back as an empty record, not an error.
func (s *MeterService) Day(ctx context.Context, userID, date string) (usage.DayRecord, error) {
	rec, err := s.store.GetDay(ctx, userID, date)
	if errors.Is(err, ports.ErrNotFound) {
		return usage.DayRecord{Date: date}, nil
	}
	return rec, err
}

// Range returns all usage records for a user between two day keys,
// inclusive.
func (s *MeterService) Range(ctx context.Context, userID, from, to string) ([]usage.DayRecord, error) {
	return s.store.ListRange(ctx, userID, from, to)
}

// Rates exposes the cost table in effect, for reporting.
func (s *MeterService) Rates() usage.Rates {
	return s.rates
}
