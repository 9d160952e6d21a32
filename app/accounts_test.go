package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/clock"
	"github.com/voxbridge/voxbridge/adapters/memory"
	"github.com/voxbridge/voxbridge/ports"
)

func newTestGate(users ports.UserStore, clk ports.Clock) *AccountService {
	return NewAccountService(AccountDeps{
		Users:  users,
		Clock:  clk,
		Logger: zerolog.Nop(),
	})
}

func TestGateAdmitsActiveUser(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewUserStore()
	store.Put(ports.User{ID: "u1", Status: ports.StatusActive})

	if d := newTestGate(store, clk).Authorize(context.Background(), "u1"); !d.Allowed {
		t.Fatalf("active user denied: %+v", d)
	}
}

func TestGateDeniesBlockedUser(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewUserStore()
	store.Put(ports.User{ID: "u1", Status: ports.StatusBlocked, BlockedReason: "abuse"})

	d := newTestGate(store, clk).Authorize(context.Background(), "u1")
	if d.Allowed {
		t.Fatal("blocked user admitted")
	}
	if d.Reason != GateReasonBlocked || d.Detail != "abuse" {
		t.Fatalf("decision = %+v, want blocked with detail", d)
	}
}

func TestGateSuspensionLapses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	store := memory.NewUserStore()
	store.Put(ports.User{
		ID:             "u1",
		Status:         ports.StatusSuspended,
		SuspendedUntil: now.Add(time.Hour),
	})
	gate := newTestGate(store, clk)

	if d := gate.Authorize(context.Background(), "u1"); d.Allowed {
		t.Fatal("suspended user admitted before suspension end")
	}

	clk.Advance(2 * time.Hour)
	if d := gate.Authorize(context.Background(), "u1"); !d.Allowed {
		t.Fatalf("lapsed suspension still denying: %+v", d)
	}
}

func TestGateOpenEndedSuspension(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewUserStore()
	store.Put(ports.User{ID: "u1", Status: ports.StatusSuspended})

	if d := newTestGate(store, clk).Authorize(context.Background(), "u1"); d.Allowed {
		t.Fatal("suspension with no end time must deny indefinitely")
	}
}

func TestGateFailsOpen(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if d := newTestGate(failingUserStore{}, clk).Authorize(context.Background(), "u1"); !d.Allowed {
		t.Fatal("store failure must admit the caller")
	}
	if d := newTestGate(memory.NewUserStore(), clk).Authorize(context.Background(), "ghost"); !d.Allowed {
		t.Fatal("unknown user must be admitted, identity is already verified")
	}
}
