package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/lock"
	"retailops/internal/core/tenant"
	"retailops/internal/core/types"
	"retailops/internal/domain/inventory"
	"retailops/internal/domain/sales"
	"retailops/internal/infrastructure/storage/memory"
)

const testTenant = "tenant-sales"

type fixture struct {
	ctx    context.Context
	engine *inventory.Engine
	svc    *sales.Service
}

func newFixture(t *testing.T, opts ...sales.Option) *fixture {
	t.Helper()
	store := memory.New()
	engine := inventory.NewEngine(store.Inventory(), store)
	opts = append([]sales.Option{sales.WithNumbering(store)}, opts...)
	return &fixture{
		ctx:    tenant.WithID(context.Background(), testTenant),
		engine: engine,
		svc:    sales.NewService(store.Sales(), engine, store, opts...),
	}
}

func (f *fixture) stock(t *testing.T, productID id.ID, sku string, qty int64) {
	t.Helper()
	_, err := f.engine.PostReceipt(f.ctx, inventory.ReceiptPosting{
		Key:      inventory.Key{TenantID: testTenant, ProductID: productID, VariantSKU: sku},
		Quantity: qty,
		UnitCost: types.MustMoney("5.00"),
		SourceID: id.New(),
	})
	require.NoError(t, err)
}

func (f *fixture) onHand(t *testing.T, productID id.ID, sku string) int64 {
	t.Helper()
	snap, err := f.engine.Snapshot(f.ctx, inventory.Key{TenantID: testTenant, ProductID: productID, VariantSKU: sku})
	require.NoError(t, err)
	return snap.OnHand
}

func (f *fixture) draft(t *testing.T, lines ...sales.CreateLine) *sales.Sale {
	t.Helper()
	sale, err := f.svc.Create(f.ctx, sales.CreateInput{Lines: lines})
	require.NoError(t, err)
	return sale
}

func TestCreate_Totals(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Create(f.ctx, sales.CreateInput{
		SaleDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Discount: types.MustMoney("3.00"),
		Tax:      types.MustMoney("1.20"),
		Lines: []sales.CreateLine{
			{ProductID: id.New(), VariantSKU: "A", Quantity: 2, UnitPrice: types.MustMoney("4.50")},
			{ProductID: id.New(), VariantSKU: "B", Quantity: 1, UnitPrice: types.MustMoney("6.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, sales.StatusDraft, sale.Status)
	assert.NotEmpty(t, sale.Number)
	assert.True(t, types.MustMoney("9.00").Equal(sale.Lines[0].LineTotal))
	assert.True(t, types.MustMoney("15.00").Equal(sale.Subtotal))
	assert.True(t, types.MustMoney("13.20").Equal(sale.Total))
}

func TestCreate_TotalNeverNegative(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Create(f.ctx, sales.CreateInput{
		Discount: types.MustMoney("50"),
		Lines:    []sales.CreateLine{{ProductID: id.New(), Quantity: 1, UnitPrice: types.MustMoney("10")}},
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.IsZero())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   sales.CreateInput
	}{
		{"no lines", sales.CreateInput{}},
		{"zero quantity", sales.CreateInput{Lines: []sales.CreateLine{{ProductID: id.New(), Quantity: 0}}}},
		{"negative price", sales.CreateInput{Lines: []sales.CreateLine{{ProductID: id.New(), Quantity: 1, UnitPrice: types.MustMoney("-1")}}}},
		{"negative discount", sales.CreateInput{Discount: types.MustMoney("-1"), Lines: []sales.CreateLine{{ProductID: id.New(), Quantity: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, tt.in)
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestLifecycle_ConfirmDeliver(t *testing.T) {
	f := newFixture(t)
	product := id.New()
	f.stock(t, product, "M", 10)

	sale := f.draft(t, sales.CreateLine{ProductID: product, VariantSKU: "M", Quantity: 4, UnitPrice: types.MustMoney("9.99")})

	confirmed, err := f.svc.Confirm(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusConfirmed, confirmed.Status)
	assert.Equal(t, int64(6), f.onHand(t, product, "M"))

	delivered, err := f.svc.Deliver(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusDelivered, delivered.Status)
	assert.Equal(t, int64(6), f.onHand(t, product, "M"))

	_, err = f.svc.Cancel(f.ctx, sale.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState), "delivered sales cannot be canceled")
}

func TestConfirm_InsufficientStockIsAtomic(t *testing.T) {
	f := newFixture(t)
	enough, short := id.New(), id.New()
	f.stock(t, enough, "A", 10)
	f.stock(t, short, "B", 1)

	sale := f.draft(t,
		sales.CreateLine{ProductID: enough, VariantSKU: "A", Quantity: 3, UnitPrice: types.MustMoney("1")},
		sales.CreateLine{ProductID: short, VariantSKU: "B", Quantity: 2, UnitPrice: types.MustMoney("1")},
	)

	_, err := f.svc.Confirm(f.ctx, sale.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, short.String(), appErr.Details["product_id"])

	got, err := f.svc.GetByID(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusDraft, got.Status)
	assert.Equal(t, int64(10), f.onHand(t, enough, "A"))
	assert.Equal(t, int64(1), f.onHand(t, short, "B"))
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	product := id.New()
	f.stock(t, product, "S", 5)

	sale := f.draft(t, sales.CreateLine{ProductID: product, VariantSKU: "S", Quantity: 5, UnitPrice: types.MustMoney("2")})
	_, err := f.svc.Confirm(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.onHand(t, product, "S"))

	canceled, err := f.svc.Cancel(f.ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCanceled, canceled.Status)
	assert.Equal(t, int64(5), f.onHand(t, product, "S"))
}

func TestTransitions_Invalid(t *testing.T) {
	f := newFixture(t)
	product := id.New()
	f.stock(t, product, "", 10)
	sale := f.draft(t, sales.CreateLine{ProductID: product, Quantity: 1, UnitPrice: types.MustMoney("1")})

	_, err := f.svc.Deliver(f.ctx, sale.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState), "draft cannot be delivered")

	_, err = f.svc.Cancel(f.ctx, sale.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState), "draft cannot be canceled")

	_, err = f.svc.Confirm(f.ctx, sale.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(f.ctx, sale.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState), "confirm twice")
	assert.Equal(t, int64(9), f.onHand(t, product, ""))

	_, err = f.svc.Confirm(f.ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, apperror.NewTransactionConflict(nil)
}

var _ lock.Locker = busyLocker{}

func TestConfirm_LockHeldElsewhere(t *testing.T) {
	f := newFixture(t, sales.WithLocker(busyLocker{}))
	product := id.New()
	f.stock(t, product, "", 1)
	sale := f.draft(t, sales.CreateLine{ProductID: product, Quantity: 1, UnitPrice: types.MustMoney("1")})

	_, err := f.svc.Confirm(f.ctx, sale.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeTransactionConflict))
	assert.Equal(t, int64(1), f.onHand(t, product, ""))
}
