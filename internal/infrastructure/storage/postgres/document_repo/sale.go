package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"retailops/internal/core/id"
	"retailops/internal/domain/sales"
	"retailops/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "sales"
	saleLinesTable = "sale_lines"
)

var saleColumns = []string{
	"id", "tenant_id", "number", "customer_id", "status", "sale_date",
	"subtotal", "discount", "tax", "total", "notes", "created_at", "updated_at",
}

var saleLineColumns = []string{
	"id", "sale_id", "line_no", "product_id", "variant_sku", "quantity", "unit_price", "line_total",
}

var _ sales.Repository = (*SaleRepo)(nil)

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	base
}

// NewSaleRepo creates the sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{base: newBase(txm)}
}

func (r *SaleRepo) insertQuery(s *sales.Sale) squirrel.InsertBuilder {
	return r.builder.Insert(salesTable).
		Columns(saleColumns...).
		Values(
			s.ID, s.TenantID, s.Number, s.CustomerID, string(s.Status), s.SaleDate,
			s.Subtotal, s.Discount, s.Tax, s.Total, s.Notes, s.CreatedAt, s.UpdatedAt,
		)
}

func (r *SaleRepo) insertLinesQuery(lines []sales.Line) squirrel.InsertBuilder {
	q := r.builder.Insert(saleLinesTable).Columns(saleLineColumns...)
	for _, l := range lines {
		q = q.Values(l.ID, l.SaleID, l.LineNo, l.ProductID, l.VariantSKU, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	return q
}

func (r *SaleRepo) Create(ctx context.Context, s *sales.Sale) error {
	if err := r.exec(ctx, r.insertQuery(s), "sale"); err != nil {
		return err
	}
	return r.exec(ctx, r.insertLinesQuery(s.Lines), "sale line")
}

func (r *SaleRepo) headerQuery(tenantID string, saleID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": saleID})
}

func (r *SaleRepo) load(ctx context.Context, q squirrel.SelectBuilder, saleID id.ID) (*sales.Sale, error) {
	var s sales.Sale
	if err := r.get(ctx, &s, q, "sale", saleID); err != nil {
		return nil, err
	}

	lines := r.builder.Select(saleLineColumns...).
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("line_no")
	if err := r.selectAll(ctx, &s.Lines, lines, "sale lines"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SaleRepo) GetByID(ctx context.Context, tenantID string, saleID id.ID) (*sales.Sale, error) {
	return r.load(ctx, r.headerQuery(tenantID, saleID), saleID)
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, tenantID string, saleID id.ID) (*sales.Sale, error) {
	return r.load(ctx, r.headerQuery(tenantID, saleID).Suffix("FOR UPDATE"), saleID)
}

func (r *SaleRepo) updateStatusQuery(s *sales.Sale) squirrel.UpdateBuilder {
	return r.builder.Update(salesTable).
		Set("status", string(s.Status)).
		Set("updated_at", s.UpdatedAt).
		Where(squirrel.Eq{"tenant_id": s.TenantID, "id": s.ID})
}

func (r *SaleRepo) UpdateStatus(ctx context.Context, s *sales.Sale) error {
	return r.execOne(ctx, r.updateStatusQuery(s), "sale", s.ID)
}
