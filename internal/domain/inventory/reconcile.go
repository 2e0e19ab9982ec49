package inventory

import (
	"context"
	"fmt"

	"retailops/internal/core/tenant"
	"retailops/pkg/logger"
)

// Divergence is a key whose snapshot disagrees with its ledger.
type Divergence struct {
	Key       Key   `json:"key"`
	OnHand    int64 `json:"onHand"`
	LedgerSum int64 `json:"ledgerSum"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked  int
	Diverged []Divergence
}

// Reconcile walks every snapshot of every tenant in batches and compares it
// against the ledger. Divergent keys are reported and logged; nothing is
// repaired.
func (e *Engine) Reconcile(ctx context.Context, batchSize int) (*ReconcileReport, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	report := &ReconcileReport{}

	var after *Key
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		keys, err := e.repo.Keys(ctx, after, batchSize)
		if err != nil {
			return report, fmt.Errorf("list keys: %w", err)
		}

		for _, key := range keys {
			kctx := tenant.WithID(ctx, key.TenantID)
			onHand, sum, err := e.positions(kctx, key)
			if err != nil {
				return report, err
			}
			report.Checked++
			if onHand != sum {
				logger.Error(kctx, "inventory snapshot diverged from ledger",
					"product_id", key.ProductID,
					"variant_sku", key.VariantSKU,
					"on_hand", onHand,
					"ledger_sum", sum,
				)
				report.Diverged = append(report.Diverged, Divergence{Key: key, OnHand: onHand, LedgerSum: sum})
			}
		}

		if len(keys) < batchSize {
			return report, nil
		}
		last := keys[len(keys)-1]
		after = &last
	}
}
