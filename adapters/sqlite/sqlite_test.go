package sqlite_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/adapters/sqlite"
	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/domain/usage"
	"github.com/voxbridge/voxbridge/ports"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open("file:" + t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRateLimitStore_UpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewRateLimitStore(newDB(t))

	rec, err := store.Update(ctx, "u1:predict", func(rec ratelimit.Record) (ratelimit.Record, bool) {
		if rec.Minute.Count != 0 {
			t.Errorf("fresh key count = %d, want 0", rec.Minute.Count)
		}
		rec.Minute = ratelimit.Window{Count: 1, ResetAt: base.Add(time.Minute)}
		rec.Hour = ratelimit.Window{Count: 1, ResetAt: base.Add(time.Hour)}
		rec.Day = ratelimit.Window{Count: 1, ResetAt: base.Add(24 * time.Hour)}
		rec.LastRequestAt = base
		return rec, true
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rec.Minute.Count != 1 {
		t.Errorf("returned minute count = %d, want 1", rec.Minute.Count)
	}

	got, err := store.Get(ctx, "u1:predict")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Minute.Count != 1 || got.Hour.Count != 1 || got.Day.Count != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", got.Minute.Count, got.Hour.Count, got.Day.Count)
	}
	if !got.Minute.ResetAt.Equal(base.Add(time.Minute)) {
		t.Errorf("minute reset = %v, want %v", got.Minute.ResetAt, base.Add(time.Minute))
	}
}

func TestRateLimitStore_NoCommitLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewRateLimitStore(newDB(t))

	store.Update(ctx, "k", func(rec ratelimit.Record) (ratelimit.Record, bool) {
		rec.Minute.Count = 2
		rec.Minute.ResetAt = base.Add(time.Minute)
		rec.Hour.ResetAt = base.Add(time.Hour)
		rec.Day.ResetAt = base.Add(24 * time.Hour)
		rec.LastRequestAt = base
		return rec, true
	})
	store.Update(ctx, "k", func(rec ratelimit.Record) (ratelimit.Record, bool) {
		rec.Minute.Count = 99
		return rec, false
	})

	got, _ := store.Get(ctx, "k")
	if got.Minute.Count != 2 {
		t.Errorf("count = %d, want 2", got.Minute.Count)
	}
}

func TestRateLimitStore_ConcurrentNoOvershoot(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewRateLimitStore(newDB(t))
	pol := ratelimit.Policy{PerMinute: 5, PerHour: 100, PerDay: 100}

	var mu sync.Mutex
	allowed, denied := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res ratelimit.Result
			_, err := store.Update(ctx, "u1:clone-voice", func(rec ratelimit.Record) (ratelimit.Record, bool) {
				var next ratelimit.Record
				res, next = ratelimit.Check(rec, pol, base)
				return next, res.Allowed
			})
			if err != nil {
				t.Errorf("Update: %v", err)
				return
			}
			mu.Lock()
			if res.Allowed {
				allowed++
			} else {
				denied++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if allowed != 5 || denied != 5 {
		t.Errorf("allowed/denied = %d/%d, want 5/5", allowed, denied)
	}
}

func TestUsageStore_AddDeltaAccumulates(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewUsageStore(newDB(t))

	for i := 0; i < 3; i++ {
		err := store.AddDelta(ctx, "u1", "2024-03-10", usage.Delta{
			Endpoint: "speak",
			Metrics:  usage.Metrics{Characters: 500},
			CostUSD:  0.015,
		}, base)
		if err != nil {
			t.Fatalf("AddDelta: %v", err)
		}
	}
	err := store.AddDelta(ctx, "u1", "2024-03-10", usage.Delta{
		Endpoint: "emergency",
		Metrics:  usage.Metrics{CallSeconds: 30, SMSCount: 1},
		CostUSD:  0.0145,
	}, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("AddDelta: %v", err)
	}

	rec, err := store.GetDay(ctx, "u1", "2024-03-10")
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if rec.Endpoints["speak"].Calls != 3 || rec.Endpoints["speak"].Characters != 1500 {
		t.Errorf("speak usage = %+v", rec.Endpoints["speak"])
	}
	if rec.Endpoints["emergency"].SMSCount != 1 || rec.Endpoints["emergency"].CallSeconds != 30 {
		t.Errorf("emergency usage = %+v", rec.Endpoints["emergency"])
	}
	if math.Abs(rec.TotalCostUSD-(3*0.015+0.0145)) > 1e-9 {
		t.Errorf("totalCost = %v", rec.TotalCostUSD)
	}
}

func TestUsageStore_GetDayNotFound(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewUsageStore(newDB(t))

	if _, err := store.GetDay(ctx, "u1", "2024-03-10"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUsageStore_ListRange(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewUsageStore(newDB(t))

	for _, date := range []string{"2024-03-08", "2024-03-09", "2024-03-10"} {
		store.AddDelta(ctx, "u1", date, usage.Delta{Endpoint: "predict", CostUSD: 0.001}, base)
	}

	recs, err := store.ListRange(ctx, "u1", "2024-03-09", "2024-03-10")
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Date != "2024-03-10" {
		t.Errorf("order: first = %s, want 2024-03-10", recs[0].Date)
	}
}

func TestUserStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewUserStore(newDB(t))

	err := store.Put(ctx, ports.User{
		ID:             "u1",
		Email:          "pat@example.com",
		DisplayName:    "Pat",
		Status:         ports.StatusSuspended,
		SuspendedUntil: base.Add(time.Hour),
		CreatedAt:      base,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	u, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Status != ports.StatusSuspended {
		t.Errorf("status = %q", u.Status)
	}
	if !u.SuspendedUntil.Equal(base.Add(time.Hour)) {
		t.Errorf("suspendedUntil = %v", u.SuspendedUntil)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	users, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("got %d users, want 1", len(users))
	}
}

func TestUserStore_GetByEmail(t *testing.T) {
	ctx := context.Background()
	store := sqlite.NewUserStore(newDB(t))

	err := store.Put(ctx, ports.User{
		ID:           "u1",
		Email:        "pat@example.com",
		Status:       ports.StatusActive,
		PasswordHash: []byte("$2a$10$fakehash"),
		CreatedAt:    base,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	u, err := store.GetByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("ID = %q, want u1", u.ID)
	}
	if string(u.PasswordHash) != "$2a$10$fakehash" {
		t.Errorf("passwordHash = %q", u.PasswordHash)
	}

	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
