package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

// Hash fields of a usage day record. Per-endpoint accumulators are
// stored as "<metric>:<endpoint>" fields and bumped with HINCRBY, so
// the merge is a server-side atomic increment.
const (
	fieldDate      = "date"
	fieldTotalCost = "cost"
	fieldUpdated   = "updated"

	metricCalls        = "calls"
	metricTokens       = "tokens"
	metricCharacters   = "chars"
	metricAudioSeconds = "audio"
	metricCallSeconds  = "call"
	metricSMSCount     = "sms"
)

// UsageStore implements ports.UsageStore on Redis.
type UsageStore struct {
	client *redis.Client
}

// NewUsageStore creates a new Redis usage store.
func NewUsageStore(client *redis.Client) *UsageStore {
	return &UsageStore{client: client}
}

// AddDelta merges one call's contribution into the user's day record.
// All increments go through one MULTI, so concurrent calls for the
// same user/day interleave without lost updates.
func (s *UsageStore) AddDelta(ctx context.Context, userID, date string, delta usage.Delta, now time.Time) error {
	key := usageKey(userID, date)
	m := delta.Metrics

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldDate, date, fieldUpdated, now.UnixNano())
		pipe.HIncrBy(ctx, key, metricCalls+":"+delta.Endpoint, 1)
		pipe.HIncrByFloat(ctx, key, fieldTotalCost, delta.CostUSD)
		if m.Tokens != 0 {
			pipe.HIncrBy(ctx, key, metricTokens+":"+delta.Endpoint, m.Tokens)
		}
		if m.Characters != 0 {
			pipe.HIncrBy(ctx, key, metricCharacters+":"+delta.Endpoint, m.Characters)
		}
		if m.AudioSeconds != 0 {
			pipe.HIncrByFloat(ctx, key, metricAudioSeconds+":"+delta.Endpoint, m.AudioSeconds)
		}
		if m.CallSeconds != 0 {
			pipe.HIncrByFloat(ctx, key, metricCallSeconds+":"+delta.Endpoint, m.CallSeconds)
		}
		if m.SMSCount != 0 {
			pipe.HIncrBy(ctx, key, metricSMSCount+":"+delta.Endpoint, m.SMSCount)
		}
		pipe.SAdd(ctx, usageIndexKey(userID), date)
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge usage delta: %w", err)
	}
	return nil
}

// GetDay retrieves one day's record.
func (s *UsageStore) GetDay(ctx context.Context, userID, date string) (usage.DayRecord, error) {
	vals, err := s.client.HGetAll(ctx, usageKey(userID, date)).Result()
	if err != nil {
		return usage.DayRecord{}, fmt.Errorf("read usage day: %w", err)
	}
	if len(vals) == 0 {
		return usage.DayRecord{}, ports.ErrNotFound
	}
	return recordFromUsageHash(date, vals)
}

// ListRange returns the user's day records in range, newest first.
func (s *UsageStore) ListRange(ctx context.Context, userID, from, to string) ([]usage.DayRecord, error) {
	dates, err := s.client.SMembers(ctx, usageIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read usage index: %w", err)
	}

	var inRange []string
	for _, date := range dates {
		if date >= from && date <= to {
			inRange = append(inRange, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(inRange)))

	out := make([]usage.DayRecord, 0, len(inRange))
	for _, date := range inRange {
		rec, err := s.GetDay(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromUsageHash(date string, vals map[string]string) (usage.DayRecord, error) {
	rec := usage.DayRecord{Date: date, Endpoints: make(map[string]usage.EndpointUsage)}

	for field, raw := range vals {
		switch field {
		case fieldDate:
			continue
		case fieldTotalCost:
			cost, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return usage.DayRecord{}, fmt.Errorf("parse cost: %w", err)
			}
			rec.TotalCostUSD = cost
			continue
		case fieldUpdated:
			nanos, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return usage.DayRecord{}, fmt.Errorf("parse updated: %w", err)
			}
			rec.LastUpdatedAt = time.Unix(0, nanos).UTC()
			continue
		}

		metric, endpoint, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		ep := rec.Endpoints[endpoint]
		switch metric {
		case metricCalls, metricTokens, metricCharacters, metricSMSCount:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return usage.DayRecord{}, fmt.Errorf("parse %s: %w", field, err)
			}
			switch metric {
			case metricCalls:
				ep.Calls = n
			case metricTokens:
				ep.Tokens = n
			case metricCharacters:
				ep.Characters = n
			case metricSMSCount:
				ep.SMSCount = n
			}
		case metricAudioSeconds, metricCallSeconds:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return usage.DayRecord{}, fmt.Errorf("parse %s: %w", field, err)
			}
			if metric == metricAudioSeconds {
				ep.AudioSeconds = f
			} else {
				ep.CallSeconds = f
			}
		default:
			continue
		}
		rec.Endpoints[endpoint] = ep
	}

	return rec, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
