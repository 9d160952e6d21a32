package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

// UsageStore implements ports.UsageStore using SQLite. Increments are
// applied server-side (col = col + delta) inside one transaction, so
// concurrent tracking calls for the same user/day never lose updates.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// AddDelta merges one call's contribution into the user's day record.
func (s *UsageStore) AddDelta(ctx context.Context, userID, date string, delta usage.Delta, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	m := delta.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_endpoints
			(user_id, date, endpoint, calls, tokens, characters,
			 audio_seconds, call_seconds, sms_count)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date, endpoint) DO UPDATE SET
			calls         = calls + 1,
			tokens        = tokens + excluded.tokens,
			characters    = characters + excluded.characters,
			audio_seconds = audio_seconds + excluded.audio_seconds,
			call_seconds  = call_seconds + excluded.call_seconds,
			sms_count     = sms_count + excluded.sms_count
	`, userID, date, delta.Endpoint,
		m.Tokens, m.Characters, m.AudioSeconds, m.CallSeconds, m.SMSCount)
	if err != nil {
		return fmt.Errorf("upsert endpoint usage: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_days (user_id, date, total_cost_usd, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_cost_usd = total_cost_usd + excluded.total_cost_usd,
			last_updated   = excluded.last_updated
	`, userID, date, delta.CostUSD, now)
	if err != nil {
		return fmt.Errorf("upsert day totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetDay retrieves one day's record.
func (s *UsageStore) GetDay(ctx context.Context, userID, date string) (usage.DayRecord, error) {
	rec := usage.DayRecord{Date: date, Endpoints: make(map[string]usage.EndpointUsage)}

	err := s.db.QueryRowContext(ctx, `
		SELECT total_cost_usd, last_updated
		FROM usage_days
		WHERE user_id = ? AND date = ?
	`, userID, date).Scan(&rec.TotalCostUSD, &rec.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return usage.DayRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return usage.DayRecord{}, fmt.Errorf("query day totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT endpoint, calls, tokens, characters,
		       audio_seconds, call_seconds, sms_count
		FROM usage_endpoints
		WHERE user_id = ? AND date = ?
	`, userID, date)
	if err != nil {
		return usage.DayRecord{}, fmt.Errorf("query endpoint usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var ep usage.EndpointUsage
		if err := rows.Scan(&name, &ep.Calls, &ep.Tokens, &ep.Characters,
			&ep.AudioSeconds, &ep.CallSeconds, &ep.SMSCount); err != nil {
			return usage.DayRecord{}, fmt.Errorf("scan endpoint usage: %w", err)
		}
		rec.Endpoints[name] = ep
	}
	if err := rows.Err(); err != nil {
		return usage.DayRecord{}, fmt.Errorf("iterate endpoint usage: %w", err)
	}

	return rec, nil
}

// ListRange returns the user's day records in range, newest first.
func (s *UsageStore) ListRange(ctx context.Context, userID, from, to string) ([]usage.DayRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date
		FROM usage_days
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query day range: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day range: %w", err)
	}

	out := make([]usage.DayRecord, 0, len(dates))
	for _, date := range dates {
		rec, err := s.GetDay(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
