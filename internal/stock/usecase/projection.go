package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/event"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

// fold is the result of replaying a pair's ledger.
type fold struct {
	quantity    int64
	lastSeq     int64
	lastEntryID string
}

// replay folds the ledger forward from the latest checkpoint and verifies every link of the chain.
func replay(ctx context.Context, r stock.Reader, key model.StockKey) (*fold, error) {
	f := &fold{}
	cp, err := r.LatestCheckpoint(ctx, key)
	if err != nil {
		return nil, err
	}
	if cp != nil {
		f.quantity, f.lastSeq = cp.Quantity, cp.Seq
	}

	entries, err := r.EntriesAfter(ctx, key, f.lastSeq)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if e.Seq != f.lastSeq+1 {
			return nil, apperror.NewInternalError(
				fmt.Sprintf("ledger chain broken for %s: expected seq %d, found %d", key, f.lastSeq+1, e.Seq), nil)
		}
		if e.PriorQuantity != f.quantity {
			return nil, apperror.NewInternalError(
				fmt.Sprintf("ledger chain broken for %s at seq %d: prior %d, running %d", key, e.Seq, e.PriorQuantity, f.quantity), nil)
		}
		f.quantity += e.Delta()
		f.lastSeq = e.Seq
		f.lastEntryID = e.ID
	}
	return f, nil
}

func (uc *stockUseCase) Reconcile(ctx context.Context, key model.StockKey) (*dto.ReconcileResult, error) {
	result, _, err := uc.reconcile(ctx, key, false)
	return result, err
}

func (uc *stockUseCase) Checkpoint(ctx context.Context, key model.StockKey) (*model.StockCheckpoint, error) {
	_, cp, err := uc.reconcile(ctx, key, true)
	return cp, err
}

func (uc *stockUseCase) reconcile(ctx context.Context, key model.StockKey, checkpoint bool) (*dto.ReconcileResult, *model.StockCheckpoint, error) {
	if key.MerchantID == "" || key.SizeID == "" || key.SubProductID == "" {
		return nil, nil, apperror.NewValidationError("merchant, size and sub-product are required")
	}

	unlock, err := uc.locker.Lock(ctx, key.String())
	if err != nil {
		return nil, nil, apperror.NewInternalError("acquire stock lock", err)
	}
	defer unlock()

	result := &dto.ReconcileResult{Key: key}
	var cp *model.StockCheckpoint

	err = uc.repo.InTx(ctx, func(tx stock.TxRepository) error {
		f, err := replay(ctx, tx, key)
		if err != nil {
			return err
		}
		result.Quantity, result.LastSeq = f.quantity, f.lastSeq

		counter, err := tx.GetCounter(ctx, key)
		if err != nil {
			return err
		}

		if d := uc.compare(key, counter, f); d != nil {
			if err := uc.heal(ctx, tx, key, counter, f); err != nil {
				return err
			}
			if err := tx.SaveDiscrepancy(ctx, d); err != nil {
				return err
			}
			result.Discrepancy = d
		}

		if checkpoint {
			cp = &model.StockCheckpoint{
				ID:           uuid.NewString(),
				MerchantID:   key.MerchantID,
				SizeID:       key.SizeID,
				SubProductID: key.SubProductID,
				Seq:          f.lastSeq,
				Quantity:     f.quantity,
				CreatedAt:    uc.now().UTC(),
			}
			return tx.SaveCheckpoint(ctx, cp)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if d := result.Discrepancy; d != nil {
		uc.logger.Warn("stock counter diverged from ledger, healed",
			zap.String("key", key.String()),
			zap.Int64("counter_quantity", d.CounterQuantity),
			zap.Int64("ledger_quantity", d.LedgerQuantity),
			zap.Int64("counter_seq", d.CounterSeq),
			zap.Int64("ledger_seq", d.LedgerSeq),
		)
		uc.refreshCache(ctx, key, result.Quantity)
		uc.publish(ctx, event.Event{
			EventType:  event.TypeStockDiscrepancyDetected,
			MerchantID: key.MerchantID,
			Key:        key.String(),
			Payload:    d,
		})
	}
	return result, cp, nil
}

// compare returns a discrepancy when the counter does not match the fold, or nil when it does.
func (uc *stockUseCase) compare(key model.StockKey, counter *model.StockCounter, f *fold) *model.StockDiscrepancy {
	var counterQty, counterSeq int64
	var counterEntryID string
	if counter != nil {
		counterQty, counterSeq, counterEntryID = counter.CurrentQuantity, counter.LastSeq, counter.LastLedgerEntryID
	}

	var detail string
	switch {
	case counter == nil && f.lastSeq == 0:
		return nil
	case counter == nil:
		detail = "counter missing"
	case counterQty != f.quantity:
		detail = "quantity mismatch"
	case counterSeq != f.lastSeq:
		detail = "sequence mismatch"
	case f.lastEntryID != "" && counterEntryID != f.lastEntryID:
		detail = "last entry mismatch"
	default:
		return nil
	}

	return &model.StockDiscrepancy{
		ID:              uuid.NewString(),
		MerchantID:      key.MerchantID,
		SizeID:          key.SizeID,
		SubProductID:    key.SubProductID,
		CounterQuantity: counterQty,
		LedgerQuantity:  f.quantity,
		CounterSeq:      counterSeq,
		LedgerSeq:       f.lastSeq,
		Detail:          detail,
		DetectedAt:      uc.now().UTC(),
	}
}

func (uc *stockUseCase) heal(ctx context.Context, tx stock.TxRepository, key model.StockKey, counter *model.StockCounter, f *fold) error {
	next := &model.StockCounter{
		MerchantID:        key.MerchantID,
		SizeID:            key.SizeID,
		SubProductID:      key.SubProductID,
		CurrentQuantity:   f.quantity,
		LastLedgerEntryID: f.lastEntryID,
		LastSeq:           f.lastSeq,
		UpdatedAt:         uc.now().UTC(),
	}
	if counter == nil {
		next.Version = 1
		return tx.InsertCounter(ctx, next)
	}
	if next.LastLedgerEntryID == "" {
		next.LastLedgerEntryID = counter.LastLedgerEntryID
	}
	next.Version = counter.Version + 1
	return tx.UpdateCounter(ctx, next, counter.Version)
}

// ReconcileAll checks every pair of a merchant that has a counter or ledger entries, so a lost
// counter row is recreated. A failing pair is logged and does not stop the rest.
func (uc *stockUseCase) ReconcileAll(ctx context.Context, merchantID string) (*dto.ReconcileSummary, error) {
	if merchantID == "" {
		return nil, apperror.NewValidationError("merchant_id is required")
	}

	keys, err := uc.repo.ListKeys(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	summary := &dto.ReconcileSummary{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := uc.Reconcile(ctx, key)
		if err != nil {
			uc.logger.Error("reconcile failed", zap.String("key", key.String()), zap.Error(err))
			continue
		}
		summary.Checked++
		if res.Discrepancy != nil {
			summary.Healed++
		}
	}

	uc.logger.Info("reconciled merchant stock",
		zap.String("merchant_id", merchantID),
		zap.Int("checked", summary.Checked),
		zap.Int("healed", summary.Healed),
	)
	return summary, nil
}

func (uc *stockUseCase) ListDiscrepancies(ctx context.Context, merchantID string, limit int) ([]model.StockDiscrepancy, error) {
	if merchantID == "" {
		return nil, apperror.NewValidationError("merchant_id is required")
	}
	return uc.repo.ListDiscrepancies(ctx, merchantID, limit)
}
