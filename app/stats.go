package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

// topUserCount caps the leaderboard in the admin overview.
const topUserCount = 10

// Overview is the admin dashboard aggregate for a trailing window of
// days.
type Overview struct {
	Days           int               `json:"days"`
	TotalCalls     int64             `json:"totalCalls"`
	TotalCostUSD   float64           `json:"totalCostUsd"`
	TodayCalls     int64             `json:"todayCalls"`
	TodayCostUSD   float64           `json:"todayCostUsd"`
	Daily          []usage.DailyStat `json:"daily"`
	TopUsers       []usage.UserTotal `json:"topUsers"`
	UserCount      int               `json:"userCount"`
	ActiveUsers    int               `json:"activeUsers"`
	SuspendedUsers int               `json:"suspendedUsers"`
	BlockedUsers   int               `json:"blockedUsers"`
}

// StatsService aggregates usage across all users for the admin
// surface.
type StatsService struct {
	usage  ports.UsageStore
	users  ports.UserStore
	clock  ports.Clock
	logger zerolog.Logger
}

// StatsDeps contains dependencies for StatsService.
type StatsDeps struct {
	Usage  ports.UsageStore
	Users  ports.UserStore
	Clock  ports.Clock
	Logger zerolog.Logger
}

// NewStatsService creates the admin aggregation service.
func NewStatsService(deps StatsDeps) *StatsService {
	return &StatsService{
		usage:  deps.Usage,
		users:  deps.Users,
		clock:  deps.Clock,
		logger: deps.Logger.With().Str("component", "stats").Logger(),
	}
}

// Overview builds the dashboard aggregate for the trailing window of
// days ending today. Per-user store errors are logged and the user
// skipped, so one bad read does not take down the whole dashboard.
// A days value below 1 is treated as 1.
func (s *StatsService) Overview(ctx context.Context, days int) (Overview, error) {
	if days < 1 {
		days = 1
	}
	now := s.clock.Now().UTC()
	to := now
	from := now.AddDate(0, 0, -(days - 1))
	fromKey, toKey := usage.DayKey(from), usage.DayKey(to)

	users, err := s.users.List(ctx)
	if err != nil {
		return Overview{}, err
	}

	series := usage.NewSeries(from, to)
	totals := make([]usage.UserTotal, 0, len(users))

	ov := Overview{Days: days, UserCount: len(users)}
	for _, u := range users {
		switch u.Status {
		case ports.StatusSuspended:
			ov.SuspendedUsers++
		case ports.StatusBlocked:
			ov.BlockedUsers++
		default:
			ov.ActiveUsers++
		}

		recs, err := s.usage.ListRange(ctx, u.ID, fromKey, toKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("skipping user in overview, usage read failed")
			continue
		}

		var calls int64
		var cost float64
		for _, rec := range recs {
			c, usd := series.Fold(rec)
			calls += c
			cost += usd
		}
		totals = append(totals, usage.UserTotal{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			TotalCalls:  calls,
			TotalCost:   cost,
		})
	}

	ov.Daily = series.Sorted()
	ov.TotalCostUSD = series.TotalCost()
	for _, day := range ov.Daily {
		ov.TotalCalls += day.TotalCalls
	}
	if today, ok := series[usage.DayKey(now)]; ok {
		ov.TodayCalls = today.TotalCalls
		ov.TodayCostUSD = today.TotalCost
	}
	ov.TopUsers = usage.RankUsers(totals, topUserCount)
	return ov, nil
}

// UserUsage returns one user's day records over a trailing window,
// newest first, along with the user account for context.
func (s *StatsService) UserUsage(ctx context.Context, userID string, days int) (ports.User, []usage.DayRecord, error) {
	if days < 1 {
		days = 1
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return ports.User{}, nil, err
	}

	now := s.clock.Now().UTC()
	from := usage.DayKey(now.AddDate(0, 0, -(days - 1)))
	to := usage.DayKey(now)
	recs, err := s.usage.ListRange(ctx, userID, from, to)
	if err != nil {
		return ports.User{}, nil, err
	}
	return user, recs, nil
}
