package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/ports"
)

// Hash fields of a rate limit record.
const (
	fieldMinuteCount = "mc"
	fieldMinuteReset = "mr"
	fieldHourCount   = "hc"
	fieldHourReset   = "hr"
	fieldDayCount    = "dc"
	fieldDayReset    = "dr"
	fieldLastRequest = "lr"
)

// maxTxRetries bounds the optimistic-concurrency retry loop. With
// per-key contention limited to one user's requests this is ample.
const maxTxRetries = 16

// RateLimitStore implements ports.RateLimitStore on Redis using the
// WATCH/MULTI compare-and-swap pattern: the record is read under
// WATCH, fn is applied, and the write commits only if no concurrent
// writer touched the key. Conflicts retry with backoff, so callers
// get the same atomic check-and-increment guarantee as a transaction.
type RateLimitStore struct {
	client *redis.Client
}

// NewRateLimitStore creates a new Redis rate limit store.
func NewRateLimitStore(client *redis.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

// Update atomically applies fn to the record for key.
func (s *RateLimitStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (ratelimit.Record, error) {
	redisKey := rateLimitKey(key)
	var updated ratelimit.Record

	txn := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, redisKey).Result()
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		rec, err := recordFromHash(vals)
		if err != nil {
			return err
		}

		var commit bool
		updated, commit = fn(rec)
		if !commit {
			// Nothing to write; the empty MULTI still validates the
			// WATCH so a concurrent mutation retries cleanly.
			_, err = tx.TxPipelined(ctx, func(redis.Pipeliner) error { return nil })
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, hashFromRecord(updated))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, redisKey)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return ratelimit.Record{}, err
		}
		// Lost the race for this key; back off briefly and retry.
		select {
		case <-ctx.Done():
			return ratelimit.Record{}, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return ratelimit.Record{}, fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}

// Get retrieves the current record without modifying it.
func (s *RateLimitStore) Get(ctx context.Context, key string) (ratelimit.Record, error) {
	vals, err := s.client.HGetAll(ctx, rateLimitKey(key)).Result()
	if err != nil {
		return ratelimit.Record{}, fmt.Errorf("read record: %w", err)
	}
	return recordFromHash(vals)
}

func hashFromRecord(rec ratelimit.Record) map[string]interface{} {
	return map[string]interface{}{
		fieldMinuteCount: rec.Minute.Count,
		fieldMinuteReset: rec.Minute.ResetAt.UnixNano(),
		fieldHourCount:   rec.Hour.Count,
		fieldHourReset:   rec.Hour.ResetAt.UnixNano(),
		fieldDayCount:    rec.Day.Count,
		fieldDayReset:    rec.Day.ResetAt.UnixNano(),
		fieldLastRequest: rec.LastRequestAt.UnixNano(),
	}
}

func recordFromHash(vals map[string]string) (ratelimit.Record, error) {
	if len(vals) == 0 {
		// No history for this key yet, logically a zero record.
		return ratelimit.Record{}, nil
	}

	var rec ratelimit.Record
	var err error
	if rec.Minute, err = windowFromHash(vals, fieldMinuteCount, fieldMinuteReset); err != nil {
		return ratelimit.Record{}, err
	}
	if rec.Hour, err = windowFromHash(vals, fieldHourCount, fieldHourReset); err != nil {
		return ratelimit.Record{}, err
	}
	if rec.Day, err = windowFromHash(vals, fieldDayCount, fieldDayReset); err != nil {
		return ratelimit.Record{}, err
	}

	if raw, ok := vals[fieldLastRequest]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ratelimit.Record{}, fmt.Errorf("parse %s: %w", fieldLastRequest, err)
		}
		rec.LastRequestAt = time.Unix(0, nanos).UTC()
	}
	return rec, nil
}

func windowFromHash(vals map[string]string, countField, resetField string) (ratelimit.Window, error) {
	var w ratelimit.Window
	if raw, ok := vals[countField]; ok {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return ratelimit.Window{}, fmt.Errorf("parse %s: %w", countField, err)
		}
		w.Count = count
	}
	if raw, ok := vals[resetField]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ratelimit.Window{}, fmt.Errorf("parse %s: %w", resetField, err)
		}
		w.ResetAt = time.Unix(0, nanos).UTC()
	}
	return w, nil
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
