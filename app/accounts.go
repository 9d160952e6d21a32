package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/ports"
)

// Gate decision reasons.
const (
	GateReasonBlocked   = "account_blocked"
	GateReasonSuspended = "account_suspended"
)

// GateDecision is the outcome of the account gate for one request.
type GateDecision struct {
	Allowed bool
	Reason  string
	Detail  string
}

// AccountService answers whether an account may use metered endpoints.
type AccountService struct {
	users  ports.UserStore
	clock  ports.Clock
	logger zerolog.Logger
}

// AccountDeps contains dependencies for AccountService.
type AccountDeps struct {
	Users  ports.UserStore
	Clock  ports.Clock
	Logger zerolog.Logger
}

// NewAccountService creates the account gate.
func NewAccountService(deps AccountDeps) *AccountService {
	return &AccountService{
		users:  deps.Users,
		clock:  deps.Clock,
		logger: deps.Logger.With().Str("component", "accounts").Logger(),
	}
}

// Authorize checks the caller's account standing. Blocked accounts are
// always denied. Suspended accounts are denied until their suspension
// lapses; a suspension whose end time has passed admits the caller
// again without waiting for an explicit status flip. Unknown users and
// store failures admit the caller: identity was already verified by
// the token layer, and account standing is an advisory gate.
func (s *AccountService) Authorize(ctx context.Context, userID string) GateDecision {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("user store unavailable, admitting caller")
		}
		return GateDecision{Allowed: true}
	}

	switch user.Status {
	case ports.StatusBlocked:
		return GateDecision{Allowed: false, Reason: GateReasonBlocked, Detail: user.BlockedReason}
	case ports.StatusSuspended:
		if user.SuspendedUntil.IsZero() || s.clock.Now().Before(user.SuspendedUntil) {
			return GateDecision{Allowed: false, Reason: GateReasonSuspended}
		}
		// Suspension already lapsed.
		return GateDecision{Allowed: true}
	default:
		return GateDecision{Allowed: true}
	}
}
