package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/ports"
)

// RateLimitStore implements ports.RateLimitStore using SQLite. The
// immediate-lock transaction is the atomic check-and-increment
// primitive: concurrent updates for the same key serialize on the
// database write lock.
type RateLimitStore struct {
	db *DB
}

// NewRateLimitStore creates a new SQLite rate limit store.
func NewRateLimitStore(db *DB) *RateLimitStore {
	return &RateLimitStore{db: db}
}

// Update atomically applies fn to the record for key.
func (s *RateLimitStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (ratelimit.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT minute_count, minute_reset, hour_count, hour_reset,
		       day_count, day_reset, last_request
		FROM rate_limit_records
		WHERE key = ?
	`, key))
	if err != nil {
		return ratelimit.Record{}, err
	}

	updated, commit := fn(rec)
	if !commit {
		return updated, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_limit_records
			(key, minute_count, minute_reset, hour_count, hour_reset,
			 day_count, day_reset, last_request)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			minute_count = excluded.minute_count,
			minute_reset = excluded.minute_reset,
			hour_count   = excluded.hour_count,
			hour_reset   = excluded.hour_reset,
			day_count    = excluded.day_count,
			day_reset    = excluded.day_reset,
			last_request = excluded.last_request
	`, key,
		updated.Minute.Count, updated.Minute.ResetAt,
		updated.Hour.Count, updated.Hour.ResetAt,
		updated.Day.Count, updated.Day.ResetAt,
		updated.LastRequestAt)
	if err != nil {
		return ratelimit.Record{}, fmt.Errorf("upsert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ratelimit.Record{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// Get retrieves the current record without modifying it.
func (s *RateLimitStore) Get(ctx context.Context, key string) (ratelimit.Record, error) {
	return scanRecord(s.db.QueryRowContext(ctx, `
		SELECT minute_count, minute_reset, hour_count, hour_reset,
		       day_count, day_reset, last_request
		FROM rate_limit_records
		WHERE key = ?
	`, key))
}

func scanRecord(row *sql.Row) (ratelimit.Record, error) {
	var rec ratelimit.Record
	err := row.Scan(
		&rec.Minute.Count, &rec.Minute.ResetAt,
		&rec.Hour.Count, &rec.Hour.ResetAt,
		&rec.Day.Count, &rec.Day.ResetAt,
		&rec.LastRequestAt)
	if errors.Is(err, sql.ErrNoRows) {
		// No history for this key yet, logically a zero record.
		return ratelimit.Record{}, nil
	}
	if err != nil {
		return ratelimit.Record{}, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
