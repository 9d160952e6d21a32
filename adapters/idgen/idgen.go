// Package idgen provides unique ID generation.
package idgen

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/voxbridge/voxbridge/ports"
)

// UUID generates random UUIDv4 identifiers.
type UUID struct{}

// New returns a new random UUID string.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates predictable IDs for testing.
type Sequential struct {
	prefix string
	next   int
}

// NewSequential creates a sequential generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next sequential ID.
func (s *Sequential) New() string {
	s.next++
	return s.prefix + "-" + strconv.Itoa(s.next)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
