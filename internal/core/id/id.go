// Package id generates record identifiers. Every document, line, ledger entry
// and payment gets a UUIDv7, so ids sort by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID identifies a record.
type ID = uuid.UUID

// New returns a UUIDv7, falling back to a random v4 if the clock source fails.
func New() ID {
	if v, err := uuid.NewV7(); err == nil {
		return v
	}
	return uuid.New()
}

// Parse accepts the canonical textual form.
func Parse(s string) (ID, error) { return uuid.Parse(s) }

// MustParse is Parse for fixtures; it panics on malformed input.
func MustParse(s string) ID { return uuid.MustParse(s) }

// IsNil reports whether v is the zero id.
func IsNil(v ID) bool { return v == uuid.Nil }
