package auth_test

import (
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/adapters/auth"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	token, expiresAt, err := svc.Issue("user-1", "pat@example.com", "user")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Errorf("expiresAt = %v, should be in the future", expiresAt)
	}

	id, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "user-1" {
		t.Errorf("userID = %q, want user-1", id.UserID)
	}
	if id.Email != "pat@example.com" {
		t.Errorf("email = %q", id.Email)
	}
	if id.IsAdmin {
		t.Error("user role should not be admin")
	}
}

func TestTokenService_AdminRole(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	token, _, err := svc.Issue("admin-1", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !id.IsAdmin {
		t.Error("admin role not recognized")
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := auth.NewTokenService("secret-a", time.Hour)
	verifier := auth.NewTokenService("secret-b", time.Hour)

	token, _, _ := issuer.Issue("user-1", "", "user")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected verification failure for wrong secret")
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := auth.NewTokenService("test-secret", -time.Minute)

	token, _, _ := svc.Issue("user-1", "", "user")
	if _, err := svc.Verify(token); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)
	if _, err := svc.Verify("not.a.token"); err == nil {
		t.Fatal("expected verification failure")
	}
}
