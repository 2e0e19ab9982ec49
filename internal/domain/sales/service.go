package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"retailops/internal/core/id"
	"retailops/internal/core/lock"
	"retailops/internal/core/numerator"
	"retailops/internal/core/tenant"
	"retailops/internal/core/tx"
	"retailops/internal/core/types"
	"retailops/internal/domain/inventory"
	"retailops/pkg/logger"
)

// StockPoster is the part of the inventory engine used by the sale lifecycle.
type StockPoster interface {
	PostSale(ctx context.Context, p inventory.SalePosting) (*inventory.Snapshot, error)
	ReverseSale(ctx context.Context, tenantID string, sourceID id.ID, items []inventory.Item) error
}

// Service provides sale lifecycle operations.
type Service struct {
	repo      Repository
	stock     StockPoster
	txManager tx.Manager
	locker    lock.Locker
	counter   numerator.Counter
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes transitions of one sale across replicas.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithNumbering assigns SO-YYYY-NNNNN numbers to new sales.
func WithNumbering(c numerator.Counter) Option {
	return func(s *Service) { s.counter = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a sale service.
func NewService(repo Repository, stock StockPoster, txManager tx.Manager, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		stock:     stock,
		txManager: txManager,
		locker:    lock.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new sale.
type CreateInput struct {
	CustomerID *id.ID
	SaleDate   time.Time
	Discount   types.Money
	Tax        types.Money
	Notes      string
	Lines      []CreateLine
}

// CreateLine is one line of CreateInput.
type CreateLine struct {
	ProductID  id.ID
	VariantSKU string
	Quantity   int64
	UnitPrice  types.Money
}

// Create records a draft sale. Stock is untouched until Confirm.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Sale, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sale := &Sale{
		ID:         id.New(),
		TenantID:   tenantID,
		CustomerID: in.CustomerID,
		Status:     StatusDraft,
		SaleDate:   in.SaleDate,
		Discount:   in.Discount,
		Tax:        in.Tax,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines:      make([]Line, 0, len(in.Lines)),
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}
	for i, l := range in.Lines {
		sale.Lines = append(sale.Lines, Line{
			ID:         id.New(),
			SaleID:     sale.ID,
			LineNo:     i + 1,
			ProductID:  l.ProductID,
			VariantSKU: l.VariantSKU,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
	}
	if err := sale.Validate(); err != nil {
		return nil, err
	}
	sale.ComputeTotals()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if s.counter != nil {
			n, err := s.counter.Next(ctx, tenantID, numerator.KeySaleOrder)
			if err != nil {
				return err
			}
			sale.Number = numerator.Format(numerator.DefaultConfig("SO"), now, n)
		}
		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale created", "id", sale.ID, "number", sale.Number, "total", sale.Total.String())
	return sale, nil
}

// GetByID returns a sale with its lines.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, tenantID, saleID)
}

// Confirm posts every line to stock and moves the sale to confirmed.
// If any line is short the whole confirm fails and the sale stays draft.
func (s *Service) Confirm(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.transition(ctx, saleID, StatusConfirmed, "confirm", func(ctx context.Context, sale *Sale) error {
		for _, i := range lockOrder(sale) {
			line := &sale.Lines[i]
			_, err := s.stock.PostSale(ctx, inventory.SalePosting{
				Key: inventory.Key{
					TenantID:   sale.TenantID,
					ProductID:  line.ProductID,
					VariantSKU: line.VariantSKU,
				},
				Quantity: line.Quantity,
				SourceID: sale.ID,
			})
			if err != nil {
				return fmt.Errorf("post sale line %d: %w", line.LineNo, err)
			}
		}
		return nil
	})
}

// Deliver marks a confirmed sale as delivered. No stock effect.
func (s *Service) Deliver(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.transition(ctx, saleID, StatusDelivered, "deliver", nil)
}

// Cancel returns a confirmed sale's lines to stock and marks it canceled.
func (s *Service) Cancel(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.transition(ctx, saleID, StatusCanceled, "cancel", func(ctx context.Context, sale *Sale) error {
		items := make([]inventory.Item, 0, len(sale.Lines))
		for i := range sale.Lines {
			items = append(items, inventory.Item{
				ProductID:  sale.Lines[i].ProductID,
				VariantSKU: sale.Lines[i].VariantSKU,
				Quantity:   sale.Lines[i].Quantity,
			})
		}
		if err := s.stock.ReverseSale(ctx, sale.TenantID, sale.ID, items); err != nil {
			return fmt.Errorf("reverse sale: %w", err)
		}
		return nil
	})
}

// transition locks the sale, checks the move, runs effect and persists the
// new status in one transaction.
func (s *Service) transition(
	ctx context.Context,
	saleID id.ID,
	to Status,
	op string,
	effect func(ctx context.Context, sale *Sale) error,
) (*Sale, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, "sale:"+tenantID+":"+saleID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var sale *Sale
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetForUpdate(ctx, tenantID, saleID)
		if err != nil {
			return err
		}
		if err := sale.transition(to, op); err != nil {
			return err
		}
		if effect != nil {
			if err := effect(ctx, sale); err != nil {
				return err
			}
		}
		from := sale.Status
		sale.Status = to
		sale.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateStatus(ctx, sale); err != nil {
			sale.Status = from
			return fmt.Errorf("update sale status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale transitioned", "id", sale.ID, "operation", op, "status", sale.Status)
	return sale, nil
}

// lockOrder returns line indexes sorted by stock key.
func lockOrder(sale *Sale) []int {
	idx := make([]int, len(sale.Lines))
	for i := range idx {
		idx[i] = i
	}
	key := func(i int) inventory.Key {
		return inventory.Key{TenantID: sale.TenantID, ProductID: sale.Lines[i].ProductID, VariantSKU: sale.Lines[i].VariantSKU}
	}
	sort.SliceStable(idx, func(a, b int) bool { return key(idx[a]).Less(key(idx[b])) })
	return idx
}
