package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	pricingdto "github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
	pricingRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/pricing/repository"
	pricingUCPkg "github.com/fekuna/omnipos-ledger-service/internal/pricing/usecase"
	stockdto "github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	stockRepoPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/usecase"
	"github.com/fekuna/omnipos-ledger-service/internal/testutil"
)

type fixture struct {
	db  *sqlx.DB
	env *Env
	cat testutil.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	locker := lock.NewLocalLocker()
	log := logger.NewNop()

	return &fixture{
		db:  db,
		cat: testutil.SeedCatalog(t, db, "m-1", decimal.NewFromInt(1000)),
		env: &Env{
			DB:      db,
			Dialect: "sqlite3",
			Stock:   stockUCPkg.NewStockUseCase(stockRepoPkg.NewPGRepository(db), locker, nil, nil, log),
			Pricing: pricingUCPkg.NewPricingUseCase(pricingRepoPkg.NewPGRepository(db), locker, nil, log),
		},
	}
}

func (f *fixture) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand(func(context.Context, bool) (*Env, error) { return f.env, nil })
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (f *fixture) receive(t *testing.T, qty int64) {
	t.Helper()
	_, err := f.env.Stock.RecordMovement(context.Background(), &stockdto.RecordMovementInput{
		MerchantID:   f.cat.MerchantID,
		SizeID:       f.cat.SizeID,
		SubProductID: f.cat.SubProductID,
		MovementType: model.MovementIncrease,
		Quantity:     qty,
		Reason:       "delivery",
		UserID:       "u-1",
	})
	require.NoError(t, err)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	assert.Equal(t, "ledgerctl", cmd.Use)

	for _, name := range []string{"migrate", "sweep", "reconcile", "checkpoint"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	f := newFixture(t)
	_, err := f.run("migrate", "status", "--format", "yaml")
	assert.Error(t, err)
}

func TestMigrateStatus(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 3")

	_, err = f.run("migrate", "sideways")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSweep_AppliesDueChanges(t *testing.T) {
	f := newFixture(t)
	effective := time.Now().UTC().Add(time.Hour)

	_, err := f.env.Pricing.SchedulePriceChange(context.Background(), &pricingdto.SchedulePriceChangeInput{
		MerchantID:  f.cat.MerchantID,
		ProductID:   f.cat.SubProductID,
		NewPrice:    decimal.NewFromInt(1200),
		EffectiveAt: effective,
		UserID:      "u-1",
	})
	require.NoError(t, err)

	out, err := f.run("sweep", "--format", "json", "--at", effective.Add(-time.Minute).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, `"applied":0`)

	out, err = f.run("sweep", "--format", "json", "--at", effective.Add(time.Minute).Format(time.RFC3339))
	require.NoError(t, err)

	var resp struct {
		Status string                 `json:"status"`
		Data   pricingdto.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Applied)

	_, err = f.run("sweep", "--at", "tomorrow")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReconcile_ReportsHealedCounters(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 7)

	out, err := f.run("reconcile", "--merchant", f.cat.MerchantID)
	require.NoError(t, err)
	assert.Contains(t, out, "healed:  0")

	f.db.MustExec(f.db.Rebind(`UPDATE stock_counters SET current_quantity = ? WHERE merchant_id = ?`), 40, f.cat.MerchantID)

	out, err = f.run("reconcile", "--merchant", f.cat.MerchantID)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "healed:  1")

	qty, err := f.env.Stock.ReadStock(context.Background(), model.StockKey{
		MerchantID: f.cat.MerchantID, SizeID: f.cat.SizeID, SubProductID: f.cat.SubProductID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), qty)

	_, err = f.run("reconcile")
	assert.Error(t, err)
}

func TestCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 4)
	f.receive(t, 2)

	out, err := f.run("checkpoint", "--merchant", f.cat.MerchantID, "--size", f.cat.SizeID, "--sub-product", f.cat.SubProductID)
	require.NoError(t, err)
	assert.Contains(t, out, "checkpoint at seq 2, quantity 6")
}
