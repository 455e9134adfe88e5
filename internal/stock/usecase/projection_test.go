package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/event"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
)

func TestReconcile_CleanCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 9))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementDamaged, 2))
	require.NoError(t, err)

	res, err := f.uc.Reconcile(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Quantity)
	assert.Equal(t, int64(2), res.LastSeq)
	assert.Nil(t, res.Discrepancy)
	assert.Empty(t, f.events.OfType(event.TypeStockDiscrepancyDetected))
}

func TestReconcile_NeverMovedPair(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.Reconcile(context.Background(), f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Quantity)
	assert.Nil(t, res.Discrepancy)
}

func TestReconcile_HealsCorruptedCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 10))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementSale, 4))
	require.NoError(t, err)

	f.db.MustExec(f.db.Rebind(`UPDATE stock_counters SET current_quantity = ? WHERE merchant_id = ?`), 99, f.key.MerchantID)

	res, err := f.uc.Reconcile(ctx, f.key)
	require.NoError(t, err)
	require.NotNil(t, res.Discrepancy)
	assert.Equal(t, int64(99), res.Discrepancy.CounterQuantity)
	assert.Equal(t, int64(6), res.Discrepancy.LedgerQuantity)
	assert.Equal(t, "quantity mismatch", res.Discrepancy.Detail)

	counter, err := f.repo.GetCounter(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(6), counter.CurrentQuantity)

	qty, err := f.uc.ReadStock(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(6), qty)

	stored, err := f.uc.ListDiscrepancies(ctx, f.key.MerchantID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Len(t, f.events.OfType(event.TypeStockDiscrepancyDetected), 1)

	res, err = f.uc.Reconcile(ctx, f.key)
	require.NoError(t, err)
	assert.Nil(t, res.Discrepancy)
}

func TestReconcile_RecreatesMissingCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 3))
	require.NoError(t, err)
	f.db.MustExec(`DELETE FROM stock_counters`)

	res, err := f.uc.Reconcile(ctx, f.key)
	require.NoError(t, err)
	require.NotNil(t, res.Discrepancy)
	assert.Equal(t, "counter missing", res.Discrepancy.Detail)

	counter, err := f.repo.GetCounter(ctx, f.key)
	require.NoError(t, err)
	require.NotNil(t, counter)
	assert.Equal(t, int64(3), counter.CurrentQuantity)
	assert.Equal(t, int64(1), counter.LastSeq)

	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementSale, 1))
	require.NoError(t, err)
}

func TestCheckpoint_FoldsFromSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 10))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementSale, 3))
	require.NoError(t, err)

	cp, err := f.uc.Checkpoint(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cp.Seq)
	assert.Equal(t, int64(7), cp.Quantity)

	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementReturn, 1))
	require.NoError(t, err)

	res, err := f.uc.Reconcile(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Quantity)
	assert.Equal(t, int64(3), res.LastSeq)
	assert.Nil(t, res.Discrepancy)

	latest, err := f.repo.LatestCheckpoint(ctx, f.key)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, latest.ID)
}

func TestReconcile_BrokenChainIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 10))
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, f.movement(model.MovementSale, 3))
	require.NoError(t, err)

	f.db.MustExec(f.db.Rebind(`UPDATE stock_ledger_entries SET prior_quantity = ? WHERE seq = 2`), 4)

	_, err = f.uc.Reconcile(ctx, f.key)
	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", apperror.CategoryOf(err))
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 5))
	require.NoError(t, err)

	other := f.movement(model.MovementIncrease, 2)
	other.SizeID = seedSize(t, f)
	_, err = f.uc.RecordMovement(ctx, other)
	require.NoError(t, err)

	f.db.MustExec(f.db.Rebind(`UPDATE stock_counters SET current_quantity = ? WHERE size_id = ?`), 0, other.SizeID)

	summary, err := f.uc.ReconcileAll(ctx, f.key.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Healed)

	_, err = f.uc.ReconcileAll(ctx, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestReconcileAll_ReachesPairWithoutCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, f.movement(model.MovementIncrease, 5))
	require.NoError(t, err)

	other := f.movement(model.MovementIncrease, 2)
	other.SizeID = seedSize(t, f)
	_, err = f.uc.RecordMovement(ctx, other)
	require.NoError(t, err)

	f.db.MustExec(f.db.Rebind(`DELETE FROM stock_counters WHERE size_id = ?`), other.SizeID)

	summary, err := f.uc.ReconcileAll(ctx, f.key.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Healed)

	otherKey := model.StockKey{MerchantID: f.key.MerchantID, SizeID: other.SizeID, SubProductID: f.key.SubProductID}
	counter, err := f.repo.GetCounter(ctx, otherKey)
	require.NoError(t, err)
	require.NotNil(t, counter)
	assert.Equal(t, int64(2), counter.CurrentQuantity)

	summary, err = f.uc.ReconcileAll(ctx, f.key.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Zero(t, summary.Healed)
}
