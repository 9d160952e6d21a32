package ratelimit_test

import (
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

var cloneVoicePolicy = ratelimit.Policy{PerMinute: 2, PerHour: 5, PerDay: 10}

func TestCheck_FirstRequest(t *testing.T) {
	res, rec := ratelimit.Check(ratelimit.Record{}, cloneVoicePolicy, now)

	if !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res.Remaining.Minute != 1 {
		t.Errorf("remaining.minute = %d, want 1", res.Remaining.Minute)
	}
	if res.Remaining.Hour != 4 {
		t.Errorf("remaining.hour = %d, want 4", res.Remaining.Hour)
	}
	if res.Remaining.Day != 9 {
		t.Errorf("remaining.day = %d, want 9", res.Remaining.Day)
	}
	if rec.Minute.Count != 1 || rec.Hour.Count != 1 || rec.Day.Count != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", rec.Minute.Count, rec.Hour.Count, rec.Day.Count)
	}
	if !rec.Minute.ResetAt.Equal(now.Add(time.Minute)) {
		t.Errorf("minute reset = %v, want %v", rec.Minute.ResetAt, now.Add(time.Minute))
	}
	if !rec.LastRequestAt.Equal(now) {
		t.Errorf("lastRequestAt = %v, want %v", rec.LastRequestAt, now)
	}
}

func TestCheck_CloneVoiceScenario(t *testing.T) {
	// Three calls within one minute: allow with remaining 1, allow with
	// remaining 0, then deny on the minute window.
	rec := ratelimit.Record{}
	var res ratelimit.Result

	res, rec = ratelimit.Check(rec, cloneVoicePolicy, now)
	if !res.Allowed || res.Remaining.Minute != 1 {
		t.Fatalf("call 1: allowed=%v remaining.minute=%d, want true/1", res.Allowed, res.Remaining.Minute)
	}

	res, rec = ratelimit.Check(rec, cloneVoicePolicy, now.Add(time.Second))
	if !res.Allowed || res.Remaining.Minute != 0 {
		t.Fatalf("call 2: allowed=%v remaining.minute=%d, want true/0", res.Allowed, res.Remaining.Minute)
	}

	res, rec = ratelimit.Check(rec, cloneVoicePolicy, now.Add(2*time.Second))
	if res.Allowed {
		t.Fatal("call 3: should be denied")
	}
	if res.Reason != ratelimit.ReasonMinuteExceeded {
		t.Errorf("reason = %q, want %q", res.Reason, ratelimit.ReasonMinuteExceeded)
	}
	if rec.Minute.Count != 2 {
		t.Errorf("denied check mutated minute count to %d", rec.Minute.Count)
	}
}

func TestCheck_DeniedDoesNotConsume(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 1, PerHour: 10, PerDay: 10}
	_, rec := ratelimit.Check(ratelimit.Record{}, pol, now)

	_, rec2 := ratelimit.Check(rec, pol, now.Add(time.Second))
	if rec2.Hour.Count != rec.Hour.Count || rec2.Day.Count != rec.Day.Count {
		t.Errorf("denied check consumed hour/day quota: %d/%d", rec2.Hour.Count, rec2.Day.Count)
	}
	if !rec2.LastRequestAt.Equal(rec.LastRequestAt) {
		t.Error("denied check updated lastRequestAt")
	}
}

func TestCheck_MinuteWindowReset(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 2, PerHour: 100, PerDay: 100}
	rec := ratelimit.Record{}
	var res ratelimit.Result

	for i := 0; i < 2; i++ {
		res, rec = ratelimit.Check(rec, pol, now)
	}
	res, rec = ratelimit.Check(rec, pol, now)
	if res.Allowed {
		t.Fatal("third call in window should be denied")
	}

	// Past the minute boundary the next request is allowed and the
	// window restarts at count 1, not a stale leftover.
	later := now.Add(61 * time.Second)
	res, rec = ratelimit.Check(rec, pol, later)
	if !res.Allowed {
		t.Fatal("request after window rollover should be allowed")
	}
	if rec.Minute.Count != 1 {
		t.Errorf("minute count after rollover = %d, want 1", rec.Minute.Count)
	}
	if rec.Hour.Count != 3 {
		t.Errorf("hour count = %d, want 3", rec.Hour.Count)
	}
	if !rec.Minute.ResetAt.Equal(later.Add(time.Minute)) {
		t.Errorf("minute reset = %v, want %v", rec.Minute.ResetAt, later.Add(time.Minute))
	}
}

func TestCheck_IndependentWindows(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 2, PerHour: 5, PerDay: 10}
	rec := ratelimit.Record{}
	var res ratelimit.Result

	for i := 0; i < 2; i++ {
		res, rec = ratelimit.Check(rec, pol, now)
	}
	res, _ = ratelimit.Check(rec, pol, now)
	if res.Allowed || res.Reason != ratelimit.ReasonMinuteExceeded {
		t.Fatalf("exhausted minute limit: allowed=%v reason=%q", res.Allowed, res.Reason)
	}

	// After the minute rolls over the hour window (2/5) still has room.
	res, rec = ratelimit.Check(rec, pol, now.Add(2*time.Minute))
	if !res.Allowed {
		t.Fatalf("request after minute rollover denied: %q", res.Reason)
	}
	if res.Remaining.Hour != 2 {
		t.Errorf("remaining.hour = %d, want 2", res.Remaining.Hour)
	}
}

func TestCheck_HourLimit(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 100, PerHour: 3, PerDay: 100}
	rec := ratelimit.Record{}
	var res ratelimit.Result

	for i := 0; i < 3; i++ {
		res, rec = ratelimit.Check(rec, pol, now.Add(time.Duration(i)*time.Second))
		if !res.Allowed {
			t.Fatalf("call %d denied: %q", i+1, res.Reason)
		}
	}

	res, _ = ratelimit.Check(rec, pol, now.Add(4*time.Second))
	if res.Allowed {
		t.Fatal("fourth call should be denied")
	}
	if res.Reason != ratelimit.ReasonHourExceeded {
		t.Errorf("reason = %q, want %q", res.Reason, ratelimit.ReasonHourExceeded)
	}
}

func TestCheck_DayLimit(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 100, PerHour: 100, PerDay: 2}
	rec := ratelimit.Record{}
	var res ratelimit.Result

	for i := 0; i < 2; i++ {
		res, rec = ratelimit.Check(rec, pol, now)
	}
	res, _ = ratelimit.Check(rec, pol, now)
	if res.Allowed {
		t.Fatal("third call should be denied")
	}
	if res.Reason != ratelimit.ReasonDayExceeded {
		t.Errorf("reason = %q, want %q", res.Reason, ratelimit.ReasonDayExceeded)
	}
}

func TestStatus_DoesNotConsume(t *testing.T) {
	_, rec := ratelimit.Check(ratelimit.Record{}, cloneVoicePolicy, now)

	res := ratelimit.Status(rec, cloneVoicePolicy, now.Add(time.Second))
	if !res.Allowed {
		t.Fatal("status should report allowed")
	}
	if res.Remaining.Minute != 1 {
		t.Errorf("remaining.minute = %d, want 1", res.Remaining.Minute)
	}

	// Peeking again returns the same counts.
	res2 := ratelimit.Status(rec, cloneVoicePolicy, now.Add(2*time.Second))
	if res2.Remaining != res.Remaining {
		t.Errorf("status consumed quota: %+v vs %+v", res2.Remaining, res.Remaining)
	}
}

func TestStatus_ExpiredWindowsReadAsEmpty(t *testing.T) {
	pol := ratelimit.Policy{PerMinute: 2, PerHour: 5, PerDay: 10}
	rec := ratelimit.Record{}
	for i := 0; i < 2; i++ {
		_, rec = ratelimit.Check(rec, pol, now)
	}

	res := ratelimit.Status(rec, pol, now.Add(25*time.Hour))
	if !res.Allowed {
		t.Fatal("all windows expired, status should be allowed")
	}
	if res.Remaining.Minute != 2 || res.Remaining.Hour != 5 || res.Remaining.Day != 10 {
		t.Errorf("remaining = %+v, want full ceilings", res.Remaining)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		res  ratelimit.Result
		want time.Duration
	}{
		{
			name: "allowed",
			res:  ratelimit.Result{Allowed: true},
			want: 0,
		},
		{
			name: "minute denial waits for minute reset",
			res: ratelimit.Result{
				Reason: ratelimit.ReasonMinuteExceeded,
				ResetAt: ratelimit.ResetTimes{
					Minute: now.Add(40 * time.Second),
					Hour:   now.Add(30 * time.Minute),
				},
			},
			want: 40 * time.Second,
		},
		{
			name: "day denial waits for day reset",
			res: ratelimit.Result{
				Reason:  ratelimit.ReasonDayExceeded,
				ResetAt: ratelimit.ResetTimes{Day: now.Add(6 * time.Hour)},
			},
			want: 6 * time.Hour,
		},
		{
			name: "reset already passed",
			res: ratelimit.Result{
				Reason:  ratelimit.ReasonMinuteExceeded,
				ResetAt: ratelimit.ResetTimes{Minute: now.Add(-time.Second)},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ratelimit.RetryAfter(tt.res, now); got != tt.want {
				t.Errorf("RetryAfter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExempt(t *testing.T) {
	res := ratelimit.Exempt()
	if !res.Allowed {
		t.Fatal("exempt result should be allowed")
	}
	if res.Remaining.Minute != ratelimit.Unlimited {
		t.Errorf("remaining.minute = %d, want Unlimited", res.Remaining.Minute)
	}
}

func TestMaxima(t *testing.T) {
	res := ratelimit.Maxima(cloneVoicePolicy)
	if !res.Allowed {
		t.Fatal("maxima result should be allowed")
	}
	want := ratelimit.Remaining{Minute: 2, Hour: 5, Day: 10}
	if res.Remaining != want {
		t.Errorf("remaining = %+v, want %+v", res.Remaining, want)
	}
}
