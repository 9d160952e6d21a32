// Package auth provides stateless bearer token verification using JWT.
// Designed for horizontal scaling - no shared state between instances.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voxbridge/voxbridge/ports"
)

// Claims carries the identity embedded in an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"` // "admin" or "user"
	jwt.RegisteredClaims
}

// Errors returned by token verification.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSubject    = errors.New("token has no subject")
)

// TokenService issues and verifies HS256 tokens. Thread-safe and
// suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewTokenService creates a token service with the given signing secret.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	if expiration == 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{
		secret:     []byte(secret),
		issuer:     "voxbridge",
		expiration: expiration,
	}
}

// Issue creates a signed token for the given user.
func (s *TokenService) Issue(userID, email, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning the caller identity.
func (s *TokenService) Verify(tokenString string) (ports.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ports.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return ports.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return ports.Identity{}, ErrNoSubject
	}

	return ports.Identity{
		UserID:  claims.Subject,
		Email:   claims.Email,
		IsAdmin: claims.Role == "admin",
	}, nil
}

// Ensure interface compliance.
var _ ports.TokenVerifier = (*TokenService)(nil)
