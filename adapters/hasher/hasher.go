// Package hasher provides bcrypt hashing for account passwords.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/voxbridge/voxbridge/ports"
)

// Bcrypt hashes and compares secrets using bcrypt.
type Bcrypt struct {
	cost int
}

// New creates a bcrypt hasher. cost 0 uses the bcrypt default.
func New(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash generates a hash from a plaintext value.
func (b *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
}

// Compare checks if plaintext matches hash.
func (b *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Ensure interface compliance.
var _ ports.Hasher = (*Bcrypt)(nil)
