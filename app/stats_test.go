package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/clock"
	"github.com/voxbridge/voxbridge/adapters/memory"
	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

func seedStatsFixture(t *testing.T) (*StatsService, *MeterService, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	usageStore := memory.NewUsageStore()
	userStore := memory.NewUserStore()

	userStore.Put(ports.User{ID: "alice", DisplayName: "Alice", Status: ports.StatusActive})
	userStore.Put(ports.User{ID: "bob", DisplayName: "Bob", Status: ports.StatusActive})
	userStore.Put(ports.User{ID: "carol", DisplayName: "Carol", Status: ports.StatusSuspended})
	userStore.Put(ports.User{ID: "dave", DisplayName: "Dave", Status: ports.StatusBlocked})

	meter := newTestMeter(usageStore, clk)
	stats := NewStatsService(StatsDeps{
		Usage:  usageStore,
		Users:  userStore,
		Clock:  clk,
		Logger: zerolog.Nop(),
	})
	return stats, meter, clk
}

func TestOverviewAggregates(t *testing.T) {
	stats, meter, clk := seedStatsFixture(t)
	ctx := context.Background()

	// Yesterday: alice speaks. Today: alice and bob.
	clk.Set(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC))
	meter.Track(ctx, "alice", "speak", usage.Metrics{Characters: 1000})
	clk.Set(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	meter.Track(ctx, "alice", "speak", usage.Metrics{Characters: 1000})
	meter.Track(ctx, "bob", "predict", usage.Metrics{Tokens: 100})
	clk.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	ov, err := stats.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if ov.TotalCalls != 3 {
		t.Fatalf("TotalCalls = %d, want 3", ov.TotalCalls)
	}
	if ov.TodayCalls != 2 {
		t.Fatalf("TodayCalls = %d, want 2", ov.TodayCalls)
	}
	if len(ov.Daily) != 7 {
		t.Fatalf("len(Daily) = %d, want one bucket per day", len(ov.Daily))
	}
	if ov.Daily[0].Date != "2026-03-10" {
		t.Fatalf("Daily[0].Date = %s, want newest first", ov.Daily[0].Date)
	}
	if ov.Daily[0].ActiveUsers != 2 {
		t.Fatalf("today's ActiveUsers = %d, want 2", ov.Daily[0].ActiveUsers)
	}
	// Two speak calls at $0.03 each, plus 100 mixed tokens.
	wantCost := 0.06 + usage.Cost(usage.Metrics{Tokens: 100}, usage.DefaultRates())
	if math.Abs(ov.TotalCostUSD-wantCost) > 1e-9 {
		t.Fatalf("TotalCostUSD = %v, want %v", ov.TotalCostUSD, wantCost)
	}

	if ov.UserCount != 4 || ov.ActiveUsers != 2 || ov.SuspendedUsers != 1 || ov.BlockedUsers != 1 {
		t.Fatalf("status counts = %d/%d/%d/%d, want 4 users, 2 active, 1 suspended, 1 blocked",
			ov.UserCount, ov.ActiveUsers, ov.SuspendedUsers, ov.BlockedUsers)
	}
}

func TestOverviewRanksTopUsersByCost(t *testing.T) {
	stats, meter, _ := seedStatsFixture(t)
	ctx := context.Background()

	meter.Track(ctx, "alice", "speak", usage.Metrics{Characters: 100})
	meter.Track(ctx, "bob", "speak", usage.Metrics{Characters: 5000})

	ov, err := stats.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(ov.TopUsers) != 2 {
		t.Fatalf("len(TopUsers) = %d, want 2; users without calls must be dropped", len(ov.TopUsers))
	}
	if ov.TopUsers[0].UserID != "bob" {
		t.Fatalf("TopUsers[0] = %s, want bob (highest cost)", ov.TopUsers[0].UserID)
	}
}

func TestOverviewQuietRangeIsZeroFilled(t *testing.T) {
	stats, _, _ := seedStatsFixture(t)

	ov, err := stats.Overview(context.Background(), 3)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(ov.Daily) != 3 {
		t.Fatalf("len(Daily) = %d, want 3", len(ov.Daily))
	}
	for _, day := range ov.Daily {
		if day.TotalCalls != 0 || day.TotalCost != 0 || day.ActiveUsers != 0 {
			t.Fatalf("quiet day %s not zero: %+v", day.Date, day)
		}
	}
	if len(ov.TopUsers) != 0 {
		t.Fatalf("TopUsers = %v, want empty", ov.TopUsers)
	}
}

func TestOverviewUserListFailure(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	stats := NewStatsService(StatsDeps{
		Usage:  memory.NewUsageStore(),
		Users:  failingUserStore{},
		Clock:  clk,
		Logger: zerolog.Nop(),
	})

	if _, err := stats.Overview(context.Background(), 7); err == nil {
		t.Fatal("expected error when the user list cannot be read")
	}
}

func TestUserUsage(t *testing.T) {
	stats, meter, clk := seedStatsFixture(t)
	ctx := context.Background()

	clk.Set(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC))
	meter.Track(ctx, "alice", "speak", usage.Metrics{Characters: 100})
	clk.Set(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	meter.Track(ctx, "alice", "categorize", usage.Metrics{Tokens: 50})

	user, recs, err := stats.UserUsage(ctx, "alice", 30)
	if err != nil {
		t.Fatalf("UserUsage: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Fatalf("DisplayName = %s, want Alice", user.DisplayName)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Date != "2026-03-10" {
		t.Fatalf("records not newest first: %s", recs[0].Date)
	}
}

func TestUserUsageUnknownUser(t *testing.T) {
	stats, _, _ := seedStatsFixture(t)

	_, _, err := stats.UserUsage(context.Background(), "nobody", 7)
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// failingUserStore simulates an unreachable user backend.
type failingUserStore struct{}

func (failingUserStore) Get(context.Context, string) (ports.User, error) {
	return ports.User{}, ports.ErrUnavailable
}

func (failingUserStore) GetByEmail(context.Context, string) (ports.User, error) {
	return ports.User{}, ports.ErrUnavailable
}

func (failingUserStore) List(context.Context) ([]ports.User, error) {
	return nil, ports.ErrUnavailable
}
