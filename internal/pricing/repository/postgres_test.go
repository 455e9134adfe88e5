package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*PGRepository, testutil.Catalog) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewPGRepository(db), testutil.SeedCatalog(t, db, "m-1", decimal.NewFromInt(1000))
}

func schedule(t *testing.T, repo *PGRepository, cat testutil.Catalog, effective time.Time) *model.ScheduledPriceChange {
	t.Helper()
	s := &model.ScheduledPriceChange{
		ID:           uuid.NewString(),
		MerchantID:   cat.MerchantID,
		ProductID:    cat.SubProductID,
		CurrentPrice: decimal.NewFromInt(1000),
		NewPrice:     decimal.NewFromInt(1200),
		EffectiveAt:  effective,
		ScheduledBy:  "u-1",
		Status:       model.SchedulePending,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	require.NoError(t, repo.CreateSchedule(context.Background(), s))
	return s
}

func TestSchedule_ClaimIsExclusive(t *testing.T) {
	repo, cat := setup(t)
	ctx := context.Background()
	s := schedule(t, repo, cat, t0.Add(time.Hour))

	due, err := repo.DueSchedules(ctx, t0, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.DueSchedules(ctx, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	ok, err := repo.ClaimSchedule(ctx, s.ID, "token-a", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimSchedule(ctx, s.ID, "token-b", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	err = repo.MarkFailed(ctx, s.ID, "token-b", "nope", t0.Add(time.Hour))
	assert.True(t, apperror.IsConflict(err))

	require.NoError(t, repo.MarkFailed(ctx, s.ID, "token-a", "product gone", t0.Add(time.Hour)))

	got, err := repo.GetSchedule(ctx, cat.MerchantID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "product gone", *got.Error)
}

func TestSchedule_CancelOnlyFromPending(t *testing.T) {
	repo, cat := setup(t)
	ctx := context.Background()
	s := schedule(t, repo, cat, t0.Add(time.Hour))

	ok, err := repo.CancelSchedule(ctx, "m-other", s.ID, "u-2", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CancelSchedule(ctx, cat.MerchantID, s.ID, "u-2", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CancelSchedule(ctx, cat.MerchantID, s.ID, "u-2", t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimSchedule(ctx, s.ID, "token", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := repo.GetSchedule(ctx, "m-other", s.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSchedule_ReleaseStaleClaims(t *testing.T) {
	repo, cat := setup(t)
	ctx := context.Background()
	s := schedule(t, repo, cat, t0)

	ok, err := repo.ClaimSchedule(ctx, s.ID, "token", t0)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := repo.ReleaseStaleClaims(ctx, t0.Add(-time.Minute), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.ReleaseStaleClaims(ctx, t0.Add(time.Minute), t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetSchedule(ctx, cat.MerchantID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SchedulePending, got.Status)
	assert.Nil(t, got.ClaimToken)
}

func TestUpdatePrice_VersionChecked(t *testing.T) {
	repo, cat := setup(t)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx pricing.TxRepository) error {
		sp, err := tx.GetSubProduct(ctx, cat.MerchantID, cat.SubProductID)
		require.NoError(t, err)
		require.NotNil(t, sp)

		expected := sp.Version
		sp.Price = decimal.NewFromInt(1100)
		sp.Version++
		sp.UpdatedAt = t0
		require.NoError(t, tx.UpdatePrice(ctx, sp, expected))

		sp.Price = decimal.NewFromInt(1300)
		sp.Version++
		return tx.UpdatePrice(ctx, sp, expected)
	})
	assert.True(t, apperror.IsConflict(err))

	sp, err := repo.GetSubProduct(ctx, cat.MerchantID, cat.SubProductID)
	require.NoError(t, err)
	assert.True(t, sp.Price.Equal(decimal.NewFromInt(1000)), "rolled back, got %s", sp.Price)
}

func TestAppendAudit_RejectsEmptyChanges(t *testing.T) {
	repo, cat := setup(t)
	ctx := context.Background()

	rec := &model.PriceAuditRecord{
		ID:           uuid.NewString(),
		MerchantID:   cat.MerchantID,
		SubProductID: cat.SubProductID,
		Changes:      model.PriceChanges{},
		Reason:       "nothing",
		ChangedBy:    "u-1",
		Source:       model.AuditSourceManual,
		ChangedAt:    t0,
	}
	err := repo.InTx(ctx, func(tx pricing.TxRepository) error { return tx.AppendAudit(ctx, rec) })
	assert.True(t, apperror.IsValidation(err))

	rec.Changes = model.PriceChanges{model.PriceField: {Old: decimal.NewFromInt(1000), New: decimal.NewFromInt(900)}}
	require.NoError(t, repo.InTx(ctx, func(tx pricing.TxRepository) error { return tx.AppendAudit(ctx, rec) }))

	items, total, err := repo.ListAudit(ctx, &dto.AuditFilters{MerchantID: cat.MerchantID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.True(t, items[0].Changes[model.PriceField].New.Equal(decimal.NewFromInt(900)))
}
