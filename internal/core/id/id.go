// Package id provides the identity type shared by products, lots and audit rows.
// Identities are UUIDv7, so lexical order follows creation time.
package id

import (
	"github.com/google/uuid"
)

// ID identifies a ledger entity.
type ID = uuid.UUID

// New returns a fresh time-ordered identity.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts a path or payload string to an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse is Parse for fixtures and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero identity.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether v was never assigned.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
