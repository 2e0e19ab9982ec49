package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"retailops/internal/core/id"
	"retailops/internal/domain/purchasing"
	"retailops/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable     = "purchase_orders"
	purchaseOrderLinesTable = "purchase_order_lines"
	goodsReceiptsTable      = "goods_receipts"
	goodsReceiptLinesTable  = "goods_receipt_lines"
)

var purchaseOrderColumns = []string{
	"id", "tenant_id", "reference", "supplier_id", "status", "expected_date", "received_date",
	"subtotal", "tax", "total", "notes", "created_at", "updated_at",
}

var purchaseOrderLineColumns = []string{
	"id", "purchase_order_id", "line_no", "product_id", "variant_sku",
	"quantity_ordered", "quantity_received", "unit_cost", "line_total",
}

var _ purchasing.Repository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implements purchasing.Repository.
type PurchaseOrderRepo struct {
	base
}

// NewPurchaseOrderRepo creates the purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{base: newBase(txm)}
}

func (r *PurchaseOrderRepo) insertQuery(po *purchasing.PurchaseOrder) squirrel.InsertBuilder {
	return r.builder.Insert(purchaseOrdersTable).
		Columns(purchaseOrderColumns...).
		Values(
			po.ID, po.TenantID, po.Reference, po.SupplierID, string(po.Status), po.ExpectedDate, po.ReceivedDate,
			po.Subtotal, po.Tax, po.Total, po.Notes, po.CreatedAt, po.UpdatedAt,
		)
}

func (r *PurchaseOrderRepo) insertLinesQuery(lines []purchasing.Line) squirrel.InsertBuilder {
	q := r.builder.Insert(purchaseOrderLinesTable).Columns(purchaseOrderLineColumns...)
	for _, l := range lines {
		q = q.Values(
			l.ID, l.PurchaseOrderID, l.LineNo, l.ProductID, l.VariantSKU,
			l.QuantityOrdered, l.QuantityReceived, l.UnitCost, l.LineTotal,
		)
	}
	return q
}

func (r *PurchaseOrderRepo) Create(ctx context.Context, po *purchasing.PurchaseOrder) error {
	if err := r.exec(ctx, r.insertQuery(po), "purchase order"); err != nil {
		return err
	}
	return r.exec(ctx, r.insertLinesQuery(po.Lines), "purchase order line")
}

func (r *PurchaseOrderRepo) headerQuery(tenantID string, poID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(purchaseOrderColumns...).
		From(purchaseOrdersTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": poID})
}

func (r *PurchaseOrderRepo) load(ctx context.Context, q squirrel.SelectBuilder, poID id.ID) (*purchasing.PurchaseOrder, error) {
	var po purchasing.PurchaseOrder
	if err := r.get(ctx, &po, q, "purchase order", poID); err != nil {
		return nil, err
	}

	lines := r.builder.Select(purchaseOrderLineColumns...).
		From(purchaseOrderLinesTable).
		Where(squirrel.Eq{"purchase_order_id": poID}).
		OrderBy("line_no")
	if err := r.selectAll(ctx, &po.Lines, lines, "purchase order lines"); err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PurchaseOrderRepo) GetByID(ctx context.Context, tenantID string, poID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.load(ctx, r.headerQuery(tenantID, poID), poID)
}

func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, tenantID string, poID id.ID) (*purchasing.PurchaseOrder, error) {
	return r.load(ctx, r.headerQuery(tenantID, poID).Suffix("FOR UPDATE"), poID)
}

func (r *PurchaseOrderRepo) Update(ctx context.Context, po *purchasing.PurchaseOrder) error {
	header := r.builder.Update(purchaseOrdersTable).
		Set("status", string(po.Status)).
		Set("received_date", po.ReceivedDate).
		Set("updated_at", po.UpdatedAt).
		Where(squirrel.Eq{"tenant_id": po.TenantID, "id": po.ID})
	if err := r.execOne(ctx, header, "purchase order", po.ID); err != nil {
		return err
	}

	for _, l := range po.Lines {
		line := r.builder.Update(purchaseOrderLinesTable).
			Set("quantity_received", l.QuantityReceived).
			Where(squirrel.Eq{"id": l.ID, "purchase_order_id": po.ID})
		if err := r.execOne(ctx, line, "purchase order line", l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PurchaseOrderRepo) CreateReceipt(ctx context.Context, gr *purchasing.GoodsReceipt) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		header := r.builder.Insert(goodsReceiptsTable).
			Columns("id", "tenant_id", "number", "purchase_order_id", "received_at").
			Values(gr.ID, gr.TenantID, gr.Number, gr.PurchaseOrderID, gr.ReceivedAt)
		if err := r.exec(ctx, header, "goods receipt"); err != nil {
			return err
		}
		if len(gr.Lines) == 0 {
			return nil
		}

		lines := r.builder.Insert(goodsReceiptLinesTable).
			Columns("goods_receipt_id", "line_no", "product_id", "variant_sku", "quantity", "unit_cost")
		for _, l := range gr.Lines {
			lines = lines.Values(gr.ID, l.LineNo, l.ProductID, l.VariantSKU, l.Quantity, l.UnitCost)
		}
		return r.exec(ctx, lines, "goods receipt line")
	})
}

func (r *PurchaseOrderRepo) ListReceipts(ctx context.Context, tenantID string, poID id.ID) ([]purchasing.GoodsReceipt, error) {
	var receipts []purchasing.GoodsReceipt
	q := r.builder.Select("id", "tenant_id", "number", "purchase_order_id", "received_at").
		From(goodsReceiptsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "purchase_order_id": poID}).
		OrderBy("received_at", "id")
	if err := r.selectAll(ctx, &receipts, q, "goods receipts"); err != nil {
		return nil, err
	}

	for i := range receipts {
		lines := r.builder.Select("goods_receipt_id", "line_no", "product_id", "variant_sku", "quantity", "unit_cost").
			From(goodsReceiptLinesTable).
			Where(squirrel.Eq{"goods_receipt_id": receipts[i].ID}).
			OrderBy("line_no")
		if err := r.selectAll(ctx, &receipts[i].Lines, lines, "goods receipt lines"); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}
