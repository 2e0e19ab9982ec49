package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailops/internal/core/id"
	"retailops/internal/core/types"
	"retailops/internal/domain/billing"
	"retailops/internal/domain/purchasing"
	"retailops/internal/domain/sales"
)

func TestPurchaseOrderHeaderQuery_ForUpdate(t *testing.T) {
	r := NewPurchaseOrderRepo(nil)
	poID := id.New()

	sql, args, err := r.headerQuery("t1", poID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, tenant_id, reference, supplier_id, status, expected_date, received_date, "+
			"subtotal, tax, total, notes, created_at, updated_at FROM purchase_orders "+
			"WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
		sql)
	// squirrel.Eq binds driver.Valuer values, so the uuid arrives as text
	assert.Equal(t, []any{poID.String(), "t1"}, args)
}

func TestPurchaseOrderInsertLines_SingleStatement(t *testing.T) {
	r := NewPurchaseOrderRepo(nil)
	poID := id.New()
	lines := []purchasing.Line{
		{ID: id.New(), PurchaseOrderID: poID, LineNo: 1, ProductID: id.New(), QuantityOrdered: 10, UnitCost: types.MustMoney("5")},
		{ID: id.New(), PurchaseOrderID: poID, LineNo: 2, ProductID: id.New(), QuantityOrdered: 3, UnitCost: types.MustMoney("7.5")},
	}

	sql, args, err := r.insertLinesQuery(lines).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO purchase_order_lines "+
			"(id,purchase_order_id,line_no,product_id,variant_sku,quantity_ordered,quantity_received,unit_cost,line_total) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,$11,$12,$13,$14,$15,$16,$17,$18)",
		sql)
	assert.Len(t, args, 18)
	assert.Equal(t, int64(3), args[14])
}

func TestPurchaseOrderInsertQuery_StoresStatusAsText(t *testing.T) {
	r := NewPurchaseOrderRepo(nil)
	po := &purchasing.PurchaseOrder{ID: id.New(), TenantID: "t1", Status: purchasing.StatusOrdered}

	_, args, err := r.insertQuery(po).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "ordered", args[4])
}

func TestSaleUpdateStatusQuery(t *testing.T) {
	r := NewSaleRepo(nil)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	s := &sales.Sale{ID: id.New(), TenantID: "t1", Status: sales.StatusConfirmed, UpdatedAt: now}

	sql, args, err := r.updateStatusQuery(s).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE sales SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4", sql)
	assert.Equal(t, []any{"confirmed", now, s.ID.String(), "t1"}, args)
}

func TestSaleInsertQuery_NilCustomer(t *testing.T) {
	r := NewSaleRepo(nil)
	s := &sales.Sale{ID: id.New(), TenantID: "t1", Status: sales.StatusDraft}

	sql, args, err := r.insertQuery(s).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO sales (id,tenant_id,number,customer_id,status,sale_date,")
	assert.Nil(t, args[3])
}

func TestInvoiceUpdateAmountPaidQuery(t *testing.T) {
	r := NewInvoiceRepo(nil)
	inv := &billing.Invoice{ID: id.New(), TenantID: "t1", AmountPaid: types.MustMoney("12.00")}

	sql, args, err := r.updateAmountPaidQuery(inv).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE invoices SET amount_paid = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4", sql)
	require.Len(t, args, 4)
	assert.True(t, types.MustMoney("12").Equal(args[0].(types.Money)))
}

func TestInvoiceQuery_ForUpdate(t *testing.T) {
	r := NewInvoiceRepo(nil)
	invoiceID := id.New()

	sql, args, err := r.invoiceQuery("t1", invoiceID).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, tenant_id, sale_id, invoice_number, issued_at, amount, amount_paid, created_at, updated_at "+
			"FROM invoices WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
		sql)
	assert.Equal(t, []any{invoiceID.String(), "t1"}, args)
}

func TestListInvoicesQuery_StatusFilters(t *testing.T) {
	r := NewInvoiceRepo(nil)

	tests := []struct {
		status billing.PaymentStatus
		where  string
	}{
		{"", "WHERE tenant_id = $1 ORDER BY"},
		{billing.PaymentUnpaid, "WHERE tenant_id = $1 AND amount_paid <= $2 ORDER BY"},
		{billing.PaymentPartiallyPaid, "WHERE tenant_id = $1 AND (amount_paid > $2 AND amount_paid < amount) ORDER BY"},
		{billing.PaymentPaid, "WHERE tenant_id = $1 AND (amount_paid > $2 AND amount_paid >= amount) ORDER BY"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sql, args, err := r.listInvoicesQuery("t1", billing.InvoiceFilter{Status: tt.status, Limit: 20, Offset: 40}).ToSql()
			require.NoError(t, err)

			assert.Contains(t, sql, "FROM invoices "+tt.where+" issued_at DESC, id DESC LIMIT 20 OFFSET 40")
			assert.Equal(t, "t1", args[0])
		})
	}
}

func TestCountInvoicesQuery_SharesFilter(t *testing.T) {
	r := NewInvoiceRepo(nil)

	sql, args, err := r.countInvoicesQuery("t1", billing.InvoiceFilter{Status: billing.PaymentPaid, Limit: 20}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM invoices WHERE tenant_id = $1 AND (amount_paid > $2 AND amount_paid >= amount)", sql)
	assert.Equal(t, []any{"t1", 0}, args)
}
