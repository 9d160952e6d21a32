package usage_test

import (
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/domain/usage"
)

func TestNewSeries_EveryDayPresent(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)

	s := usage.NewSeries(from, to)
	if len(s) != 5 {
		t.Fatalf("series length = %d, want 5", len(s))
	}
	for _, date := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"} {
		day, ok := s[date]
		if !ok {
			t.Fatalf("missing bucket for %s", date)
		}
		if day.TotalCalls != 0 || day.TotalCost != 0 || day.ActiveUsers != 0 {
			t.Errorf("bucket %s not zero-valued: %+v", date, day)
		}
	}
}

func TestSeries_Fold(t *testing.T) {
	s := usage.NewSeries(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	)

	rec := usage.DayRecord{
		Date: "2024-03-01",
		Endpoints: map[string]usage.EndpointUsage{
			"predict": {Calls: 10},
			"speak":   {Calls: 5},
		},
		TotalCostUSD: 0.25,
	}

	calls, cost := s.Fold(rec)
	if calls != 15 {
		t.Errorf("folded calls = %d, want 15", calls)
	}
	if !approx(cost, 0.25) {
		t.Errorf("folded cost = %v, want 0.25", cost)
	}

	day := s["2024-03-01"]
	if day.TotalCalls != 15 || day.Calls["predict"] != 10 || day.Calls["speak"] != 5 {
		t.Errorf("day bucket = %+v", day)
	}
	if day.ActiveUsers != 1 {
		t.Errorf("activeUsers = %d, want 1", day.ActiveUsers)
	}

	// Second user on the same day.
	s.Fold(usage.DayRecord{
		Date:      "2024-03-01",
		Endpoints: map[string]usage.EndpointUsage{"predict": {Calls: 1}},
	})
	if day.ActiveUsers != 2 {
		t.Errorf("activeUsers = %d, want 2", day.ActiveUsers)
	}

	// Empty record does not count as active.
	s.Fold(usage.DayRecord{Date: "2024-03-02"})
	if s["2024-03-02"].ActiveUsers != 0 {
		t.Errorf("empty record counted as active user")
	}
}

func TestSeries_FoldIgnoresOutOfRange(t *testing.T) {
	s := usage.NewSeries(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	)

	calls, cost := s.Fold(usage.DayRecord{
		Date:      "2024-02-28",
		Endpoints: map[string]usage.EndpointUsage{"predict": {Calls: 3}},
	})
	if calls != 0 || cost != 0 {
		t.Errorf("out-of-range record contributed %d calls, %v cost", calls, cost)
	}
}

func TestSeries_SortedNewestFirst(t *testing.T) {
	s := usage.NewSeries(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	)

	out := s.Sorted()
	if len(out) != 3 {
		t.Fatalf("sorted length = %d, want 3", len(out))
	}
	if out[0].Date != "2024-03-03" || out[2].Date != "2024-03-01" {
		t.Errorf("sort order: %s ... %s", out[0].Date, out[2].Date)
	}
}

func TestRankUsers(t *testing.T) {
	totals := []usage.UserTotal{
		{UserID: "u1", TotalCost: 0.10, TotalCalls: 5},
		{UserID: "u2", TotalCost: 0.50, TotalCalls: 2},
		{UserID: "u3", TotalCost: 0, TotalCalls: 0}, // never called, dropped
		{UserID: "u4", TotalCost: 0.25, TotalCalls: 9},
	}

	top := usage.RankUsers(totals, 2)
	if len(top) != 2 {
		t.Fatalf("top length = %d, want 2", len(top))
	}
	if top[0].UserID != "u2" || top[1].UserID != "u4" {
		t.Errorf("ranking = %s, %s; want u2, u4", top[0].UserID, top[1].UserID)
	}
}

func TestRankUsers_StableTies(t *testing.T) {
	totals := []usage.UserTotal{
		{UserID: "a", TotalCost: 0.1, TotalCalls: 1},
		{UserID: "b", TotalCost: 0.1, TotalCalls: 1},
		{UserID: "c", TotalCost: 0.1, TotalCalls: 1},
	}

	top := usage.RankUsers(totals, 0)
	for i, want := range []string{"a", "b", "c"} {
		if top[i].UserID != want {
			t.Errorf("top[%d] = %s, want %s", i, top[i].UserID, want)
		}
	}
}
