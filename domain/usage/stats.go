package usage

import (
	"sort"
	"time"
)

// DailyStat is one day's global bucket in the admin time series.
type DailyStat struct {
	Date        string           `json:"date"`
	TotalCalls  int64            `json:"totalCalls"`
	Calls       map[string]int64 `json:"calls"` // per endpoint
	TotalCost   float64          `json:"totalCost"`
	ActiveUsers int              `json:"activeUsers"`
}

// UserTotal is one user's rollup over the aggregation range.
type UserTotal struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	TotalCost   float64 `json:"totalCost"`
	TotalCalls  int64   `json:"totalCalls"`
}

// Series is a zero-initialized daily time series keyed by date. Days
// with no activity still appear with explicit zeros.
type Series map[string]*DailyStat

// NewSeries builds buckets for every calendar day from 'from' through
// 'to' inclusive (UTC days). This is a PURE function.
func NewSeries(from, to time.Time) Series {
	s := make(Series)
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := DayKey(d)
		s[key] = &DailyStat{Date: key, Calls: make(map[string]int64)}
	}
	return s
}

// Fold merges one user's day record into the series bucket for its
// date and returns the record's call/cost contribution for the user's
// own rollup. Records whose date is outside the series are ignored.
func (s Series) Fold(rec DayRecord) (calls int64, cost float64) {
	day, ok := s[rec.Date]
	if !ok {
		return 0, 0
	}

	total := TotalCalls(rec)
	for name, ep := range rec.Endpoints {
		day.Calls[name] += ep.Calls
	}
	day.TotalCalls += total
	day.TotalCost += rec.TotalCostUSD
	if total > 0 {
		day.ActiveUsers++
	}
	return total, rec.TotalCostUSD
}

// Sorted returns the series as a slice, newest day first.
func (s Series) Sorted() []DailyStat {
	out := make([]DailyStat, 0, len(s))
	for _, day := range s {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// TotalCost sums cost across the whole series.
func (s Series) TotalCost() float64 {
	var sum float64
	for _, day := range s {
		sum += day.TotalCost
	}
	return sum
}

// RankUsers sorts user totals by cost descending and keeps the top n.
// Users with no calls in the range are dropped. The sort is stable so
// ties keep insertion order. This is a PURE function.
func RankUsers(totals []UserTotal, n int) []UserTotal {
	active := make([]UserTotal, 0, len(totals))
	for _, u := range totals {
		if u.TotalCalls > 0 {
			active = append(active, u)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].TotalCost > active[j].TotalCost
	})
	if n > 0 && len(active) > n {
		active = active[:n]
	}
	return active
}
