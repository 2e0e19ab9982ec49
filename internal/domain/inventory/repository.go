package inventory

import (
	"context"
)

// Repository persists snapshots and ledger entries.
// Locking methods must be called inside a transaction; the row lock is held
// until that transaction ends.
type Repository interface {
	// LockOrCreate returns the snapshot for key, inserting a zero row when
	// absent, and locks it for update.
	LockOrCreate(ctx context.Context, key Key) (*Snapshot, error)

	// Lock returns the locked snapshot for key, or nil when absent.
	// It never creates a row.
	Lock(ctx context.Context, key Key) (*Snapshot, error)

	// SaveSnapshot writes on_hand and average_cost of an existing row.
	SaveSnapshot(ctx context.Context, s *Snapshot) error

	// AppendLedger inserts a ledger entry.
	AppendLedger(ctx context.Context, e *LedgerEntry) error

	// GetSnapshot returns the snapshot for key or nil when absent.
	GetSnapshot(ctx context.Context, key Key) (*Snapshot, error)

	// ListLedger returns entries for key, newest first.
	ListLedger(ctx context.Context, key Key, filter LedgerFilter) ([]LedgerEntry, error)

	// SumDeltas returns the sum of ledger deltas for key.
	SumDeltas(ctx context.Context, key Key) (int64, error)

	// Keys lists snapshot keys of every tenant in Key.Less order, starting
	// after the given key (nil starts at the beginning).
	Keys(ctx context.Context, after *Key, limit int) ([]Key, error)
}
