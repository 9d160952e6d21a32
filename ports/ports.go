// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/domain/usage"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the backing store cannot be
	// reached. Consumers map it to the fail-open / fail-silent policy.
	ErrUnavailable = errors.New("store unavailable")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UpdateFunc inspects a rate limit record and returns its replacement.
// Returning commit=false leaves the stored record untouched.
type UpdateFunc func(rec ratelimit.Record) (updated ratelimit.Record, commit bool)

// RateLimitStore persists per (user, endpoint) counter records.
//
// Update is the transactional read-modify-write primitive: the fetch
// of the current record, the application of fn, and the persist of its
// result are a single atomic operation per key. Two concurrent
// updates for the same key serialize; updates for different keys do
// not block each other. Implementations retry optimistic-concurrency
// conflicts internally; callers never see them.
type RateLimitStore interface {
	// Update atomically applies fn to the record for key.
	// It returns the record fn produced, whether or not it committed.
	Update(ctx context.Context, key string, fn UpdateFunc) (ratelimit.Record, error)

	// Get retrieves the current record without modifying it.
	// A key with no history yields a zero record, not ErrNotFound.
	Get(ctx context.Context, key string) (ratelimit.Record, error)
}

// UsageStore persists per (user, date) usage documents.
type UsageStore interface {
	// AddDelta merges one call's contribution into the user's day
	// record as a single atomic increment. Concurrent calls for the
	// same (user, date) must not lose updates.
	AddDelta(ctx context.Context, userID, date string, delta usage.Delta, now time.Time) error

	// GetDay retrieves one day's record. ErrNotFound when the user
	// has no usage for that date.
	GetDay(ctx context.Context, userID, date string) (usage.DayRecord, error)

	// ListRange returns the user's day records with from <= date <= to,
	// newest first. Dates are YYYY-MM-DD strings.
	ListRange(ctx context.Context, userID, from, to string) ([]usage.DayRecord, error)
}

// Account status values.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBlocked   = "blocked"
)

// User represents a user account. Mutated by the admin CLI; the
// service reads it for login, the account gate and admin rollups.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	Status         string // "active", "suspended", "blocked"
	SuspendedUntil time.Time
	BlockedReason  string
	IsAdmin        bool
	PasswordHash   []byte
	CreatedAt      time.Time
}

// UserStore reads user accounts.
type UserStore interface {
	// Get retrieves a user by ID. ErrNotFound for unknown users.
	Get(ctx context.Context, id string) (User, error)

	// GetByEmail retrieves a user by email. ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (User, error)

	// List returns all users.
	List(ctx context.Context) ([]User, error)
}

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Identity is a verified caller.
type Identity struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// TokenVerifier validates bearer tokens from inbound requests.
type TokenVerifier interface {
	// Verify parses and validates a token, returning the caller's
	// identity or an error for invalid/expired tokens.
	Verify(token string) (Identity, error)
}

// ProviderResponse is the result of one upstream provider call.
type ProviderResponse struct {
	Status int
	Body   []byte
	Header map[string]string
}

// Upstream forwards a metered request to its paid provider backend.
type Upstream interface {
	// Invoke posts the request body to the endpoint's provider and
	// returns its response.
	Invoke(ctx context.Context, endpoint string, body []byte) (ProviderResponse, error)
}
