package inventory_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/tenant"
	"retailops/internal/core/types"
	"retailops/internal/domain/inventory"
	"retailops/internal/infrastructure/storage/memory"
)

const testTenant = "6f1c0f5e-2c43-4c55-9a59-3f1f1b7d0a01"

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	engine *inventory.Engine
	key    inventory.Key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		ctx:    tenant.WithID(context.Background(), testTenant),
		store:  store,
		engine: inventory.NewEngine(store.Inventory(), store),
		key:    inventory.Key{TenantID: testTenant, ProductID: id.New(), VariantSKU: "TSHIRT-M"},
	}
}

func (f *fixture) receive(t *testing.T, qty int64, cost string) *inventory.Snapshot {
	t.Helper()
	snap, err := f.engine.PostReceipt(f.ctx, inventory.ReceiptPosting{
		Key: f.key, Quantity: qty, UnitCost: types.MustMoney(cost), SourceID: id.New(),
	})
	require.NoError(t, err)
	return snap
}

func (f *fixture) snapshot(t *testing.T) *inventory.Snapshot {
	t.Helper()
	snap, err := f.engine.Snapshot(f.ctx, f.key)
	require.NoError(t, err)
	return snap
}

func (f *fixture) ledger(t *testing.T) []inventory.LedgerEntry {
	t.Helper()
	entries, err := f.engine.Ledger(f.ctx, f.key, inventory.LedgerFilter{Limit: 500})
	require.NoError(t, err)
	return entries
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "got %s, want %s", got, want)
}

func TestPostReceipt_RoundTrip(t *testing.T) {
	f := newFixture(t)

	snap := f.receive(t, 4, "10.00")
	assert.Equal(t, int64(4), snap.OnHand)
	assertMoney(t, "10", snap.AverageCost)

	snap = f.receive(t, 6, "15.00")
	assert.Equal(t, int64(10), snap.OnHand)
	// (4*10 + 6*15) / 10
	assertMoney(t, "13", snap.AverageCost)

	entries := f.ledger(t)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, inventory.SourceReceipt, e.SourceType)
		assert.True(t, e.UnitCostAtPosting.Valid)
		assert.False(t, e.AverageCostAtPosting.Valid)
	}
}

func TestPostReceipt_InvalidArgument(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		qty  int64
		cost string
	}{
		{"zero quantity", 0, "1"},
		{"negative quantity", -3, "1"},
		{"negative cost", 1, "-0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.PostReceipt(f.ctx, inventory.ReceiptPosting{
				Key: f.key, Quantity: tt.qty, UnitCost: types.MustMoney(tt.cost),
			})
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument), "got %v", err)
		})
	}
	assert.Empty(t, f.ledger(t))
}

func TestPostSale_InsufficientStockWritesNothing(t *testing.T) {
	t.Run("absent snapshot", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: 1})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
		assert.Equal(t, int64(0), appErr.Details["available"])
		assert.Equal(t, "TSHIRT-M", appErr.Details["variant_sku"])

		got, err := f.store.Inventory().GetSnapshot(f.ctx, f.key)
		require.NoError(t, err)
		assert.Nil(t, got, "sale must not create a snapshot")
		assert.Empty(t, f.ledger(t))
	})

	t.Run("short snapshot", func(t *testing.T) {
		f := newFixture(t)
		f.receive(t, 3, "2.50")

		_, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: 4})
		assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
		assert.Equal(t, int64(3), f.snapshot(t).OnHand)
		assert.Len(t, f.ledger(t), 1)
	})
}

func TestReceiveSellCancelScenario(t *testing.T) {
	f := newFixture(t)
	saleID := id.New()

	snap := f.receive(t, 10, "5.00")
	assert.Equal(t, int64(10), snap.OnHand)
	assertMoney(t, "5.00", snap.AverageCost)

	snap, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: 2, SourceID: saleID})
	require.NoError(t, err)
	assert.Equal(t, int64(8), snap.OnHand)
	assertMoney(t, "5.00", snap.AverageCost)

	sale := f.ledger(t)[0]
	assert.Equal(t, inventory.SourceSale, sale.SourceType)
	assert.Equal(t, int64(-2), sale.Delta)
	assert.Equal(t, saleID, sale.SourceID)
	require.True(t, sale.AverageCostAtPosting.Valid)
	assertMoney(t, "5.00", sale.AverageCostAtPosting.Decimal)
	assert.False(t, sale.UnitCostAtPosting.Valid)

	err = f.engine.ReverseSale(f.ctx, testTenant, saleID, []inventory.Item{
		{ProductID: f.key.ProductID, VariantSKU: f.key.VariantSKU, Quantity: 2},
	})
	require.NoError(t, err)

	snap = f.snapshot(t)
	assert.Equal(t, int64(10), snap.OnHand)
	assertMoney(t, "5.00", snap.AverageCost)

	cancel, err := f.engine.Ledger(f.ctx, f.key, inventory.LedgerFilter{SourceType: inventory.SourceSaleCancel})
	require.NoError(t, err)
	require.Len(t, cancel, 1)
	assert.Equal(t, int64(2), cancel[0].Delta)

	require.NoError(t, f.engine.Verify(f.ctx, f.key))
}

func TestReverseSale_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	other := id.New()

	err := f.engine.ReverseSale(f.ctx, testTenant, id.New(), []inventory.Item{
		{ProductID: f.key.ProductID, VariantSKU: f.key.VariantSKU, Quantity: 2},
		{ProductID: other, VariantSKU: "X", Quantity: 0},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))
	assert.Equal(t, int64(0), f.snapshot(t).OnHand)
	assert.Empty(t, f.ledger(t))
}

func TestPosting_JoinsCallerTransaction(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 5, "1")
	boom := errors.New("header update failed")

	err := f.store.RunInTransaction(f.ctx, func(ctx context.Context) error {
		if _, err := f.engine.PostSale(ctx, inventory.SalePosting{Key: f.key, Quantity: 5}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(5), f.snapshot(t).OnHand)
	assert.Len(t, f.ledger(t), 1)
}

func TestAverageCostMovesOnlyOnReceipt(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 10, "3.00")
	f.receive(t, 5, "6.00")
	before := f.snapshot(t).AverageCost

	for i := 0; i < 3; i++ {
		_, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: 2})
		require.NoError(t, err)
	}
	require.NoError(t, f.engine.ReverseSale(f.ctx, testTenant, id.New(), []inventory.Item{
		{ProductID: f.key.ProductID, VariantSKU: f.key.VariantSKU, Quantity: 4},
	}))

	assert.True(t, before.Equal(f.snapshot(t).AverageCost))
}

func TestOnHandEqualsLedgerSum(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	saleID := id.New()

	for i := 0; i < 200; i++ {
		qty := int64(rng.Intn(5) + 1)
		switch rng.Intn(3) {
		case 0:
			f.receive(t, qty, "4.25")
		case 1:
			_, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: qty, SourceID: saleID})
			if err != nil {
				require.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
			}
		case 2:
			require.NoError(t, f.engine.ReverseSale(f.ctx, testTenant, saleID, []inventory.Item{
				{ProductID: f.key.ProductID, VariantSKU: f.key.VariantSKU, Quantity: qty},
			}))
		}

		snap := f.snapshot(t)
		require.GreaterOrEqual(t, snap.OnHand, int64(0))
		sum, err := f.store.Inventory().SumDeltas(f.ctx, f.key)
		require.NoError(t, err)
		require.Equal(t, sum, snap.OnHand, "step %d", i)
	}
}

func TestPostSale_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 10, "2.00")

	const buyers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sold     int
		rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.PostSale(f.ctx, inventory.SalePosting{Key: f.key, Quantity: 1, SourceID: id.New()})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sold++
				return
			}
			if apperror.IsCode(err, apperror.CodeInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, sold)
	assert.Equal(t, buyers-10, rejected)
	assert.Equal(t, int64(0), f.snapshot(t).OnHand)
	require.NoError(t, f.engine.Verify(f.ctx, f.key))
}

func TestVerify_DetectsDivergence(t *testing.T) {
	f := newFixture(t)
	snap := f.receive(t, 3, "1")

	snap.OnHand = 7
	require.NoError(t, f.store.Inventory().SaveSnapshot(f.ctx, snap))

	err := f.engine.Verify(f.ctx, f.key)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
}

func TestSnapshot_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 3, "1")

	otherKey := f.key
	otherKey.TenantID = "another-tenant"
	snap, err := f.engine.Snapshot(f.ctx, otherKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.OnHand)
}

type countingObserver struct {
	mu       sync.Mutex
	posted   int
	rejected int
}

func (o *countingObserver) Posted(inventory.SourceType, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.posted++
}

func (o *countingObserver) InsufficientStock() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

// replayingTx runs every transaction body twice, the way a serialization
// retry would, and reports the outcome of the last attempt.
type replayingTx struct {
	store *memory.Store
}

func (r replayingTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	_ = r.store.RunInTransaction(ctx, fn)
	return r.store.RunInTransaction(ctx, fn)
}

func TestPostSale_RejectionObservedOncePerCall(t *testing.T) {
	store := memory.New()
	obs := &countingObserver{}
	engine := inventory.NewEngine(store.Inventory(), replayingTx{store: store}, inventory.WithObserver(obs))
	ctx := tenant.WithID(context.Background(), testTenant)
	key := inventory.Key{TenantID: testTenant, ProductID: id.New()}

	_, err := engine.PostSale(ctx, inventory.SalePosting{Key: key, Quantity: 1, SourceID: id.New()})
	require.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock), "got %v", err)

	assert.Equal(t, 1, obs.rejected)
	assert.Zero(t, obs.posted)
}
