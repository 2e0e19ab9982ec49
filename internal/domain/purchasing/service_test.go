package purchasing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/tenant"
	"retailops/internal/core/types"
	"retailops/internal/domain/inventory"
	"retailops/internal/domain/purchasing"
	"retailops/internal/infrastructure/storage/memory"
)

const testTenant = "tenant-purchasing"

var fixedNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	engine *inventory.Engine
	svc    *purchasing.Service
}

func newFixture(t *testing.T, wrap func(purchasing.Repository) purchasing.Repository) *fixture {
	t.Helper()
	store := memory.New()
	var repo purchasing.Repository = store.PurchaseOrders()
	if wrap != nil {
		repo = wrap(repo)
	}
	engine := inventory.NewEngine(store.Inventory(), store)
	return &fixture{
		ctx:    tenant.WithID(context.Background(), testTenant),
		store:  store,
		engine: engine,
		svc: purchasing.NewService(repo, engine, store,
			purchasing.WithReferenceNumbering(store),
			purchasing.WithReceiptNumbering(store),
			purchasing.WithClock(func() time.Time { return fixedNow }),
		),
	}
}

func (f *fixture) onHand(t *testing.T, productID id.ID, sku string) int64 {
	t.Helper()
	snap, err := f.engine.Snapshot(f.ctx, inventory.Key{TenantID: testTenant, ProductID: productID, VariantSKU: sku})
	require.NoError(t, err)
	return snap.OnHand
}

func (f *fixture) create(t *testing.T, lines ...purchasing.CreateLine) *purchasing.PurchaseOrder {
	t.Helper()
	po, err := f.svc.Create(f.ctx, purchasing.CreateInput{
		SupplierID: id.New(),
		Tax:        types.MustMoney("1.50"),
		Lines:      lines,
	})
	require.NoError(t, err)
	return po
}

func TestCreate_ComputesTotalsAndReference(t *testing.T) {
	f := newFixture(t, nil)

	po := f.create(t,
		purchasing.CreateLine{ProductID: id.New(), VariantSKU: "A", QuantityOrdered: 3, UnitCost: types.MustMoney("2.50")},
		purchasing.CreateLine{ProductID: id.New(), VariantSKU: "B", QuantityOrdered: 2, UnitCost: types.MustMoney("4.00")},
	)

	assert.Equal(t, purchasing.StatusOrdered, po.Status)
	assert.Equal(t, "PO-2024-00001", po.Reference)
	assert.True(t, types.MustMoney("7.50").Equal(po.Lines[0].LineTotal))
	assert.True(t, types.MustMoney("15.50").Equal(po.Subtotal))
	assert.True(t, types.MustMoney("17.00").Equal(po.Total))

	second := f.create(t, purchasing.CreateLine{ProductID: id.New(), QuantityOrdered: 1, UnitCost: types.Zero()})
	assert.Equal(t, "PO-2024-00002", second.Reference)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(f.ctx, purchasing.CreateInput{SupplierID: id.New()})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	_, err = f.svc.Create(f.ctx, purchasing.CreateInput{
		SupplierID: id.New(),
		Lines:      []purchasing.CreateLine{{ProductID: id.New(), QuantityOrdered: 0, UnitCost: types.Zero()}},
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	_, err = f.svc.Create(context.Background(), purchasing.CreateInput{})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument), "missing tenant")
}

func TestReceive_ClampsToRemaining(t *testing.T) {
	f := newFixture(t, nil)
	product := id.New()
	po := f.create(t, purchasing.CreateLine{ProductID: product, VariantSKU: "M", QuantityOrdered: 10, UnitCost: types.MustMoney("3.00")})

	res, err := f.svc.Receive(f.ctx, po.ID, []purchasing.ReceiveLine{{ProductID: product, VariantSKU: "M", Quantity: 15}})
	require.NoError(t, err)

	assert.Equal(t, purchasing.StatusReceived, res.Order.Status)
	assert.Equal(t, int64(10), res.Order.Lines[0].QuantityReceived)
	require.NotNil(t, res.Order.ReceivedDate)
	assert.Equal(t, fixedNow, *res.Order.ReceivedDate)
	assert.Equal(t, int64(10), f.onHand(t, product, "M"))

	require.NotNil(t, res.Receipt)
	assert.Equal(t, "GRN-2024-00001", res.Receipt.Number)
	require.Len(t, res.Receipt.Lines, 1)
	assert.Equal(t, int64(10), res.Receipt.Lines[0].Quantity)
}

func TestReceive_PartialThenRest(t *testing.T) {
	f := newFixture(t, nil)
	p1, p2 := id.New(), id.New()
	po := f.create(t,
		purchasing.CreateLine{ProductID: p1, VariantSKU: "S", QuantityOrdered: 5, UnitCost: types.MustMoney("1.00")},
		purchasing.CreateLine{ProductID: p2, VariantSKU: "S", QuantityOrdered: 5, UnitCost: types.MustMoney("2.00")},
	)

	res, err := f.svc.Receive(f.ctx, po.ID, []purchasing.ReceiveLine{{ProductID: p1, VariantSKU: "S", Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, purchasing.StatusPartiallyReceived, res.Order.Status)
	assert.Nil(t, res.Order.ReceivedDate)
	assert.Equal(t, int64(5), f.onHand(t, p1, "S"))
	assert.Equal(t, int64(0), f.onHand(t, p2, "S"))

	res, err = f.svc.Receive(f.ctx, po.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, purchasing.StatusReceived, res.Order.Status)
	assert.Equal(t, int64(5), f.onHand(t, p1, "S"))
	assert.Equal(t, int64(5), f.onHand(t, p2, "S"))

	receipts, err := f.svc.ListReceipts(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)
}

func TestReceive_PostsAtLineCost(t *testing.T) {
	f := newFixture(t, nil)
	product := id.New()
	po := f.create(t, purchasing.CreateLine{ProductID: product, QuantityOrdered: 4, UnitCost: types.MustMoney("12.50")})

	_, err := f.svc.Receive(f.ctx, po.ID, nil)
	require.NoError(t, err)

	snap, err := f.engine.Snapshot(f.ctx, inventory.Key{TenantID: testTenant, ProductID: product})
	require.NoError(t, err)
	assert.True(t, types.MustMoney("12.50").Equal(snap.AverageCost))
}

func TestReceive_NoReceivableQuantity(t *testing.T) {
	f := newFixture(t, nil)
	product := id.New()
	po := f.create(t, purchasing.CreateLine{ProductID: product, VariantSKU: "L", QuantityOrdered: 2, UnitCost: types.MustMoney("1")})

	tests := []struct {
		name  string
		lines []purchasing.ReceiveLine
	}{
		{"unknown product", []purchasing.ReceiveLine{{ProductID: id.New(), VariantSKU: "L", Quantity: 1}}},
		{"wrong variant", []purchasing.ReceiveLine{{ProductID: product, VariantSKU: "XL", Quantity: 1}}},
		{"non positive", []purchasing.ReceiveLine{{ProductID: product, VariantSKU: "L", Quantity: 0}}},
		{"empty request", []purchasing.ReceiveLine{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Receive(f.ctx, po.ID, tt.lines)
			assert.True(t, apperror.IsCode(err, apperror.CodeNoReceivableQuantity), "got %v", err)
		})
	}

	got, err := f.svc.GetByID(f.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasing.StatusOrdered, got.Status)
	assert.Equal(t, int64(0), f.onHand(t, product, "L"))
}

func TestReceive_RejectsClosedOrders(t *testing.T) {
	f := newFixture(t, nil)
	po := f.create(t, purchasing.CreateLine{ProductID: id.New(), QuantityOrdered: 1, UnitCost: types.MustMoney("1")})

	_, err := f.svc.Receive(f.ctx, po.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Receive(f.ctx, po.ID, nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))

	_, err = f.svc.Receive(f.ctx, id.New(), nil)
	assert.True(t, apperror.IsNotFound(err))
}

type failingReceipts struct {
	purchasing.Repository
}

func (failingReceipts) CreateReceipt(context.Context, *purchasing.GoodsReceipt) error {
	return errors.New("audit store down")
}

func TestReceive_AuditFailureKeepsStock(t *testing.T) {
	f := newFixture(t, func(r purchasing.Repository) purchasing.Repository {
		return failingReceipts{r}
	})

	product := id.New()
	po := f.create(t, purchasing.CreateLine{ProductID: product, QuantityOrdered: 3, UnitCost: types.MustMoney("1")})

	res, err := f.svc.Receive(f.ctx, po.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Receipt)
	assert.Equal(t, purchasing.StatusReceived, res.Order.Status)
	assert.Equal(t, int64(3), f.onHand(t, product, ""))
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	product := id.New()

	open := f.create(t, purchasing.CreateLine{ProductID: product, QuantityOrdered: 2, UnitCost: types.MustMoney("1")})
	got, err := f.svc.Cancel(f.ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, purchasing.StatusCancelled, got.Status)

	_, err = f.svc.Receive(f.ctx, open.ID, nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))

	partial := f.create(t, purchasing.CreateLine{ProductID: product, QuantityOrdered: 2, UnitCost: types.MustMoney("1")})
	_, err = f.svc.Receive(f.ctx, partial.ID, []purchasing.ReceiveLine{{ProductID: product, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, partial.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}
