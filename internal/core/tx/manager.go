// Package tx defines the unit-of-work contract shared by the domain services.
// Implementations live under infrastructure/storage.
package tx

import (
	"context"
)

// Manager runs fn as one atomic unit. The transaction travels in the ctx
// passed to fn; a call made with such a ctx joins the running transaction
// instead of opening a new one, so an inner error rolls back the outer work.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager is a Manager that can also open read-only units, used for
// consistency checks that must see snapshot and ledger at one point in time.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
