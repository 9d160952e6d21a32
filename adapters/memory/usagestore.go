package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore. The
// mutex makes AddDelta an atomic merge, so concurrent tracking calls
// for the same (user, date) never lose updates.
type UsageStore struct {
	mu   sync.Mutex
	days map[string]map[string]usage.DayRecord // userID -> date -> record
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		days: make(map[string]map[string]usage.DayRecord),
	}
}

// AddDelta merges one call's contribution into the user's day record.
func (s *UsageStore) AddDelta(ctx context.Context, userID, date string, delta usage.Delta, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.days[userID]
	if !ok {
		byDate = make(map[string]usage.DayRecord)
		s.days[userID] = byDate
	}

	rec, ok := byDate[date]
	if !ok {
		rec = usage.DayRecord{Date: date}
	}
	byDate[date] = usage.Apply(rec, delta, now)
	return nil
}

// GetDay retrieves one day's record.
func (s *UsageStore) GetDay(ctx context.Context, userID, date string) (usage.DayRecord, error) {
	if err := ctx.Err(); err != nil {
		return usage.DayRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.days[userID][date]
	if !ok {
		return usage.DayRecord{}, ports.ErrNotFound
	}
	return rec, nil
}

// ListRange returns the user's day records in range, newest first.
func (s *UsageStore) ListRange(ctx context.Context, userID, from, to string) ([]usage.DayRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []usage.DayRecord
	for date, rec := range s.days[userID] {
		if date >= from && date <= to {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// Clear removes all records (for testing).
func (s *UsageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[string]map[string]usage.DayRecord)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
