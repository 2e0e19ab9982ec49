package billing

import (
	"context"
	"fmt"
	"time"

	"retailops/internal/core/apperror"
	"retailops/internal/core/id"
	"retailops/internal/core/numerator"
	"retailops/internal/core/tenant"
	"retailops/internal/core/tx"
	"retailops/internal/core/types"
	"retailops/internal/domain/sales"
	"retailops/pkg/logger"
)

// SaleReader loads the sale an invoice is issued for. GetForUpdate holds
// the sale row until the surrounding transaction ends so a concurrent
// cancel cannot slip between the status check and the insert.
type SaleReader interface {
	GetForUpdate(ctx context.Context, tenantID string, saleID id.ID) (*sales.Sale, error)
}

// Service issues invoices and records payments.
type Service struct {
	repo      Repository
	sales     SaleReader
	counter   numerator.Counter
	txManager tx.Manager
	now       func() time.Time
}

// NewService creates a billing service.
func NewService(repo Repository, sales SaleReader, counter numerator.Counter, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		sales:     sales,
		counter:   counter,
		txManager: txManager,
		now:       time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IssueInvoice bills a confirmed or delivered sale. A sale is invoiced at
// most once: repeated calls return the existing invoice.
func (s *Service) IssueInvoice(ctx context.Context, saleID id.ID) (*Invoice, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var (
		inv     *Invoice
		created bool
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		created = false
		sale, err := s.sales.GetForUpdate(ctx, tenantID, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanInvoice() {
			return apperror.NewInvalidState("sale", string(sale.Status), "invoice").
				WithDetail("sale_id", sale.ID.String())
		}

		existing, err := s.repo.FindInvoiceBySale(ctx, tenantID, saleID)
		if err != nil {
			return fmt.Errorf("find invoice by sale: %w", err)
		}
		if existing != nil {
			inv = existing
			return nil
		}

		n, err := s.counter.Next(ctx, tenantID, numerator.KeyInvoice)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		inv = &Invoice{
			ID:            id.New(),
			TenantID:      tenantID,
			SaleID:        sale.ID,
			InvoiceNumber: numerator.Format(numerator.InvoiceConfig(), now, n),
			IssuedAt:      now,
			Amount:        sale.Total,
			AmountPaid:    types.Zero(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		created = true
		return nil
	})
	if apperror.IsCode(err, apperror.CodeDuplicate) {
		// lost a race with a concurrent issue for the same sale
		inv, err = s.repo.FindInvoiceBySale(ctx, tenantID, saleID)
		if err == nil && inv == nil {
			err = apperror.NewNotFound("invoice", saleID)
		}
	}
	if err != nil {
		return nil, err
	}

	if created {
		logger.Info(ctx, "invoice issued",
			"id", inv.ID,
			"number", inv.InvoiceNumber,
			"sale_id", inv.SaleID,
			"amount", inv.Amount.String())
	}
	return inv, nil
}

// GetInvoice returns an invoice.
func (s *Service) GetInvoice(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetInvoice(ctx, tenantID, invoiceID)
}

// ListInvoices returns a page of the tenant's invoices.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) (*InvoicePage, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	filter, err = filter.Normalize()
	if err != nil {
		return nil, err
	}
	invoices, total, err := s.repo.ListInvoices(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return &InvoicePage{Invoices: invoices, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListPayments returns the payments made against an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID id.ID) ([]Payment, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetInvoice(ctx, tenantID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, tenantID, invoiceID)
}

// RecordPayment stores a payment and adds it to the invoice's amount paid in
// one transaction. Payments above the outstanding balance are accepted.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*Payment, *Invoice, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	p := &Payment{
		ID:        id.New(),
		TenantID:  tenantID,
		InvoiceID: in.InvoiceID,
		Amount:    in.Amount,
		Method:    in.Method,
		PaidAt:    now,
		Notes:     in.Notes,
		CreatedAt: now,
	}
	if in.PaidAt != nil {
		p.PaidAt = in.PaidAt.UTC()
	}

	var inv *Invoice
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetInvoiceForUpdate(ctx, tenantID, in.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
		inv.UpdatedAt = now
		if err := s.repo.UpdateAmountPaid(ctx, inv); err != nil {
			return fmt.Errorf("update amount paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if inv.AmountPaid.GreaterThan(inv.Amount) {
		logger.Warn(ctx, "invoice overpaid",
			"invoice_id", inv.ID,
			"amount", inv.Amount.String(),
			"amount_paid", inv.AmountPaid.String())
	}
	logger.Info(ctx, "payment recorded",
		"id", p.ID,
		"invoice_id", inv.ID,
		"amount", p.Amount.String(),
		"status", inv.Status())

	return p, inv, nil
}
