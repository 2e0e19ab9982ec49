// Package memory is an in-process storage driver implementing every
// repository and the transaction manager. Transactions are serialized by a
// single writer lock and roll back by restoring the state captured at begin.
// Stored records are never mutated in place, so a shallow copy of the
// indexes is a complete savepoint.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"retailops/internal/core/id"
	"retailops/internal/core/tx"
	"retailops/internal/domain/billing"
	"retailops/internal/domain/inventory"
	"retailops/internal/domain/purchasing"
	"retailops/internal/domain/sales"
)

var _ tx.ReadOnlyManager = (*Store)(nil)

type state struct {
	snapshots map[inventory.Key]inventory.Snapshot
	ledger    []inventory.LedgerEntry
	counters  map[counterKey]int64
	orders    map[id.ID]purchasing.PurchaseOrder
	receipts  []purchasing.GoodsReceipt
	sales     map[id.ID]sales.Sale
	invoices  map[id.ID]billing.Invoice
	payments  []billing.Payment
}

type counterKey struct {
	tenantID string
	key      string
}

func newState() *state {
	return &state{
		snapshots: make(map[inventory.Key]inventory.Snapshot),
		counters:  make(map[counterKey]int64),
		orders:    make(map[id.ID]purchasing.PurchaseOrder),
		sales:     make(map[id.ID]sales.Sale),
		invoices:  make(map[id.ID]billing.Invoice),
	}
}

func (s *state) clone() *state {
	return &state{
		snapshots: maps.Clone(s.snapshots),
		ledger:    slices.Clone(s.ledger),
		counters:  maps.Clone(s.counters),
		orders:    maps.Clone(s.orders),
		receipts:  slices.Clone(s.receipts),
		sales:     maps.Clone(s.sales),
		invoices:  maps.Clone(s.invoices),
		payments:  slices.Clone(s.payments),
	}
}

// Store holds all records of the memory driver.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	savepoint := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = savepoint
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager. Writes made by fn are discarded.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	savepoint := s.st.clone()
	err := fn(context.WithValue(ctx, txKey{}, s))
	s.st = savepoint
	return err
}

// do runs fn against the state, taking the writer lock unless ctx already
// holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Inventory returns the inventory repository.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{store: s} }

// PurchaseOrders returns the purchasing repository.
func (s *Store) PurchaseOrders() *PurchaseOrderRepo { return &PurchaseOrderRepo{store: s} }

// Sales returns the sales repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{store: s} }

// Billing returns the billing repository.
func (s *Store) Billing() *BillingRepo { return &BillingRepo{store: s} }
