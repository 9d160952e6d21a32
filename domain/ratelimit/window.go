// Package ratelimit provides pure multi-window rate limiting algorithms.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// Window durations. Every metered endpoint is counted against all three.
const (
	MinuteWindow = time.Minute
	HourWindow   = time.Hour
	DayWindow    = 24 * time.Hour
)

// Unlimited marks a remaining count with no configured ceiling.
const Unlimited = -1

// Window holds one counting window (value type).
type Window struct {
	Count   int       // Requests in current window
	ResetAt time.Time // When current window ends
}

// Record is the per (user, endpoint) counter state (value type).
// A window whose ResetAt has passed is logically empty; it is reset
// lazily on the next check, never by a background job.
type Record struct {
	Minute        Window
	Hour          Window
	Day           Window
	LastRequestAt time.Time
}

// Policy holds the per-endpoint ceilings (value type).
type Policy struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// Remaining reports requests left per window after a check.
// Unlimited (-1) means the window has no configured ceiling.
type Remaining struct {
	Minute int
	Hour   int
	Day    int
}

// ResetTimes reports when each window rolls over.
type ResetTimes struct {
	Minute time.Time
	Hour   time.Time
	Day    time.Time
}

// Result represents the outcome of a rate limit check (value type).
type Result struct {
	Allowed   bool
	Remaining Remaining
	ResetAt   ResetTimes
	Reason    string // If not allowed, which window was exhausted
}

// Reasons for denial, one per window.
const (
	ReasonMinuteExceeded = "minute_limit_exceeded"
	ReasonHourExceeded   = "hour_limit_exceeded"
	ReasonDayExceeded    = "day_limit_exceeded"
)

// refresh returns the window itself when still open at now, or a fresh
// empty window ending at now + d.
func refresh(w Window, d time.Duration, now time.Time) Window {
	if w.ResetAt.After(now) {
		return w
	}
	return Window{Count: 0, ResetAt: now.Add(d)}
}

// Check performs a rate limit check against all three windows.
// This is a PURE function - no side effects, deterministic.
//
// Windows are evaluated minute first, then hour, then day; the first
// exhausted window denies the request and names itself in Reason. When
// the request is allowed all three counts are incremented in the
// returned record. When denied the returned record carries only the
// lazily refreshed windows, with no counts consumed.
//
// The caller must persist the returned record atomically with the read
// that produced the input record; Check itself has no notion of storage.
func Check(rec Record, pol Policy, now time.Time) (Result, Record) {
	rec.Minute = refresh(rec.Minute, MinuteWindow, now)
	rec.Hour = refresh(rec.Hour, HourWindow, now)
	rec.Day = refresh(rec.Day, DayWindow, now)

	resetAt := ResetTimes{
		Minute: rec.Minute.ResetAt,
		Hour:   rec.Hour.ResetAt,
		Day:    rec.Day.ResetAt,
	}

	var reason string
	switch {
	case rec.Minute.Count >= pol.PerMinute:
		reason = ReasonMinuteExceeded
	case rec.Hour.Count >= pol.PerHour:
		reason = ReasonHourExceeded
	case rec.Day.Count >= pol.PerDay:
		reason = ReasonDayExceeded
	}

	if reason != "" {
		return Result{
			Allowed:   false,
			Remaining: remaining(rec, pol),
			ResetAt:   resetAt,
			Reason:    reason,
		}, rec
	}

	rec.Minute.Count++
	rec.Hour.Count++
	rec.Day.Count++
	rec.LastRequestAt = now

	return Result{
		Allowed:   true,
		Remaining: remaining(rec, pol),
		ResetAt:   resetAt,
	}, rec
}

// Status reports the current state without consuming a request.
// This is a PURE function.
func Status(rec Record, pol Policy, now time.Time) Result {
	rec.Minute = refresh(rec.Minute, MinuteWindow, now)
	rec.Hour = refresh(rec.Hour, HourWindow, now)
	rec.Day = refresh(rec.Day, DayWindow, now)

	allowed := rec.Minute.Count < pol.PerMinute &&
		rec.Hour.Count < pol.PerHour &&
		rec.Day.Count < pol.PerDay

	return Result{
		Allowed:   allowed,
		Remaining: remaining(rec, pol),
		ResetAt: ResetTimes{
			Minute: rec.Minute.ResetAt,
			Hour:   rec.Hour.ResetAt,
			Day:    rec.Day.ResetAt,
		},
	}
}

// Exempt returns the result for an endpoint with no configured policy:
// always allowed, unlimited remaining.
func Exempt() Result {
	return Result{
		Allowed:   true,
		Remaining: Remaining{Minute: Unlimited, Hour: Unlimited, Day: Unlimited},
	}
}

// Maxima returns the fail-open result for a configured policy: allowed,
// with the full ceilings reported as remaining.
func Maxima(pol Policy) Result {
	return Result{
		Allowed:   true,
		Remaining: Remaining{Minute: pol.PerMinute, Hour: pol.PerHour, Day: pol.PerDay},
	}
}

// RetryAfter returns how long to wait before the denied window rolls
// over. This is a PURE function.
func RetryAfter(res Result, now time.Time) time.Duration {
	if res.Allowed {
		return 0
	}
	var resetAt time.Time
	switch res.Reason {
	case ReasonMinuteExceeded:
		resetAt = res.ResetAt.Minute
	case ReasonHourExceeded:
		resetAt = res.ResetAt.Hour
	case ReasonDayExceeded:
		resetAt = res.ResetAt.Day
	default:
		return 0
	}
	delay := resetAt.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

func remaining(rec Record, pol Policy) Remaining {
	return Remaining{
		Minute: left(pol.PerMinute, rec.Minute.Count),
		Hour:   left(pol.PerHour, rec.Hour.Count),
		Day:    left(pol.PerDay, rec.Day.Count),
	}
}

func left(limit, count int) int {
	if limit-count < 0 {
		return 0
	}
	return limit - count
}
