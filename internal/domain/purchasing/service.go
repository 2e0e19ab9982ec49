package purchasing

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
	"retailops/internal/domain/inventory"
	"retailops/pkg/logger"
)

// StockPoster is the part of the inventory engine used by receiving.
type StockPoster interface {
	PostReceipt(ctx context.Context, p inventory.ReceiptPosting) (*inventory.Snapshot, error)
}

// Service provides purchase order operations.
type Service struct {
	repo       Repository
	stock      StockPoster
	txManager  tx.Manager
	refCounter numerator.Counter
	grnCounter numerator.Counter
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithReferenceNumbering assigns PO-YYYY-NNNNN references to orders created
// without one.
func WithReferenceNumbering(c numerator.Counter) Option {
	return func(s *Service) { s.refCounter = c }
}

// WithReceiptNumbering numbers goods receipts as GRN-YYYY-NNNNN.
func WithReceiptNumbering(c numerator.Counter) Option {
	return func(s *Service) { s.grnCounter = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a purchase order service.
func NewService(repo Repository, stock StockPoster, txManager tx.Manager, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		stock:     stock,
		txManager: txManager,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	Reference    string
	SupplierID   id.ID
	ExpectedDate *time.Time
	Tax          types.Money
	Notes        string
	Lines        []CreateLine
}

// CreateLine is one line of CreateInput.
type CreateLine struct {
	ProductID       id.ID
	VariantSKU      string
	QuantityOrdered int64
	UnitCost        types.Money
}

// Create places a new order in status ordered.
func (s *Service) Create(ctx context.Context, in CreateInput) (*PurchaseOrder, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	po := &PurchaseOrder{
		ID:           id.New(),
		TenantID:     tenantID,
		Reference:    in.Reference,
		SupplierID:   in.SupplierID,
		Status:       StatusOrdered,
		ExpectedDate: in.ExpectedDate,
		Tax:          in.Tax,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        make([]Line, 0, len(in.Lines)),
	}
	for i, l := range in.Lines {
		po.Lines = append(po.Lines, Line{
			ID:              id.New(),
			PurchaseOrderID: po.ID,
			LineNo:          i + 1,
			ProductID:       l.ProductID,
			VariantSKU:      l.VariantSKU,
			QuantityOrdered: l.QuantityOrdered,
			UnitCost:        l.UnitCost,
		})
	}
	if err := po.Validate(); err != nil {
		return nil, err
	}
	po.ComputeTotals()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if po.Reference == "" && s.refCounter != nil {
			n, err := s.refCounter.Next(ctx, tenantID, numerator.KeyPurchaseOrder)
			if err != nil {
				return err
			}
			po.Reference = numerator.Format(numerator.DefaultConfig("PO"), now, n)
		}
		if err := s.repo.Create(ctx, po); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order created",
		"id", po.ID,
		"reference", po.Reference,
		"lines", len(po.Lines),
		"total", po.Total.String())

	return po, nil
}

// GetByID returns an order with its lines.
func (s *Service) GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, poID)
}

// ListReceipts returns the goods receipts recorded against an order.
func (s *Service) ListReceipts(ctx context.Context, poID id.ID) ([]GoodsReceipt, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, tenantID, poID)
}

// ReceiveResult is the outcome of Receive. Receipt is nil when the audit
// record could not be written.
type ReceiveResult struct {
	Order   *PurchaseOrder
	Receipt *GoodsReceipt
}

type receipt struct {
	line int
	qty  int64
}

// Receive posts goods against an order. A nil request receives every line's
// outstanding quantity. Requested quantities are clamped to what remains;
// lines that match nothing or clamp to zero are skipped. When nothing is left
// to post the call fails with NoReceivableQuantity and changes nothing.
func (s *Service) Receive(ctx context.Context, poID id.ID, requested []ReceiveLine) (*ReceiveResult, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var (
		po     *PurchaseOrder
		posted []ReceiptLine
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		posted = nil

		var err error
		po, err = s.repo.GetForUpdate(ctx, tenantID, poID)
		if err != nil {
			return err
		}
		if !po.Status.CanReceive() {
			return apperror.NewInvalidState("purchase order", string(po.Status), "receive")
		}

		for _, r := range plan(po, requested) {
			line := &po.Lines[r.line]
			_, err := s.stock.PostReceipt(ctx, inventory.ReceiptPosting{
				Key: inventory.Key{
					TenantID:   tenantID,
					ProductID:  line.ProductID,
					VariantSKU: line.VariantSKU,
				},
				Quantity: r.qty,
				UnitCost: line.UnitCost,
				SourceID: po.ID,
			})
			if err != nil {
				return fmt.Errorf("post receipt line %d: %w", line.LineNo, err)
			}
			line.QuantityReceived += r.qty
			posted = append(posted, ReceiptLine{
				LineNo:     len(posted) + 1,
				ProductID:  line.ProductID,
				VariantSKU: line.VariantSKU,
				Quantity:   r.qty,
				UnitCost:   line.UnitCost,
			})
		}
		if len(posted) == 0 {
			return apperror.NewNoReceivableQuantity(po.ID)
		}

		now := s.now().UTC()
		if po.FullyReceived() {
			po.Status = StatusReceived
			po.ReceivedDate = &now
		} else {
			po.Status = StatusPartiallyReceived
		}
		po.UpdatedAt = now

		if err := s.repo.Update(ctx, po); err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order received",
		"id", po.ID,
		"status", po.Status,
		"lines_posted", len(posted))

	return &ReceiveResult{
		Order:   po,
		Receipt: s.recordReceipt(ctx, po, posted),
	}, nil
}

// plan resolves requested lines into per-line quantities to post.
func plan(po *PurchaseOrder, requested []ReceiveLine) []receipt {
	var out []receipt
	if requested == nil {
		for i := range po.Lines {
			if q := po.Lines[i].Remaining(); q > 0 {
				out = append(out, receipt{line: i, qty: q})
			}
		}
		return out
	}

	// Remaining is tracked per line so the same line requested twice
	// cannot exceed what was ordered.
	remaining := make([]int64, len(po.Lines))
	for i := range po.Lines {
		remaining[i] = po.Lines[i].Remaining()
	}
	for _, r := range requested {
		idx := -1
		for i := range po.Lines {
			if po.Lines[i].Matches(r.ProductID, r.VariantSKU) {
				idx = i
				if remaining[i] > 0 {
					break
				}
			}
		}
		if idx < 0 {
			continue
		}
		q := min(remaining[idx], r.Quantity)
		if q <= 0 {
			continue
		}
		remaining[idx] -= q
		out = append(out, receipt{line: idx, qty: q})
	}
	return out
}

// recordReceipt writes the goods receipt audit record after stock is
// committed. Failures are logged and swallowed.
func (s *Service) recordReceipt(ctx context.Context, po *PurchaseOrder, lines []ReceiptLine) *GoodsReceipt {
	gr := &GoodsReceipt{
		ID:              id.New(),
		TenantID:        po.TenantID,
		PurchaseOrderID: po.ID,
		ReceivedAt:      s.now().UTC(),
		Lines:           lines,
	}
	for i := range gr.Lines {
		gr.Lines[i].GoodsReceiptID = gr.ID
	}

	if s.grnCounter != nil {
		n, err := s.grnCounter.Next(ctx, po.TenantID, numerator.KeyGoodsReceipt)
		if err != nil {
			logger.Warn(ctx, "goods receipt numbering failed", "purchase_order_id", po.ID, "error", err)
			return nil
		}
		gr.Number = numerator.Format(numerator.DefaultConfig("GRN"), gr.ReceivedAt, n)
	}

	if err := s.repo.CreateReceipt(ctx, gr); err != nil {
		logger.Warn(ctx, "goods receipt audit record failed", "purchase_order_id", po.ID, "error", err)
		return nil
	}
	return gr
}

// Cancel cancels an order that has not received anything yet.
func (s *Service) Cancel(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	var po *PurchaseOrder
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		po, err = s.repo.GetForUpdate(ctx, tenantID, poID)
		if err != nil {
			return err
		}
		if (po.Status != StatusDraft && po.Status != StatusOrdered) || po.ReceivedAny() {
			return apperror.NewInvalidState("purchase order", string(po.Status), "cancel")
		}
		po.Status = StatusCancelled
		po.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, po); err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order cancelled", "id", po.ID)
	return po, nil
}
