package stock

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

type UseCase interface {
	RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (int64, error)
	ReadStock(ctx context.Context, key model.StockKey) (int64, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockLedgerEntry, int, error)

	Reconcile(ctx context.Context, key model.StockKey) (*dto.ReconcileResult, error)
	ReconcileAll(ctx context.Context, merchantID string) (*dto.ReconcileSummary, error)
	Checkpoint(ctx context.Context, key model.StockKey) (*model.StockCheckpoint, error)
	ListDiscrepancies(ctx context.Context, merchantID string, limit int) ([]model.StockDiscrepancy, error)
}

// Cache is the read-through store for current quantities. Writers use Set; read misses fill
// with SetNX so a slow reader never overwrites a value a writer stored after it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}
