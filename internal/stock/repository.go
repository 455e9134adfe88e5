package stock

import (
	"context"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

type Reader interface {
	// GetCounter returns nil when the pair has never moved.
	GetCounter(ctx context.Context, key model.StockKey) (*model.StockCounter, error)
	// EntriesAfter returns the pair's entries with seq > afterSeq in ascending seq order.
	EntriesAfter(ctx context.Context, key model.StockKey, afterSeq int64) ([]model.StockLedgerEntry, error)
	LatestCheckpoint(ctx context.Context, key model.StockKey) (*model.StockCheckpoint, error)
}

// TxRepository is bound to one transaction. Everything written through it commits or rolls back together.
type TxRepository interface {
	Reader

	AppendEntry(ctx context.Context, entry *model.StockLedgerEntry) error
	InsertCounter(ctx context.Context, counter *model.StockCounter) error
	UpdateCounter(ctx context.Context, counter *model.StockCounter, expectedVersion int64) error
	SaveCheckpoint(ctx context.Context, cp *model.StockCheckpoint) error
	SaveDiscrepancy(ctx context.Context, d *model.StockDiscrepancy) error
}

type Repository interface {
	Reader

	SizeBelongsTo(ctx context.Context, merchantID, sizeID, subProductID string) (bool, error)
	// ListKeys returns every pair of the merchant that has a counter or ledger entries.
	ListKeys(ctx context.Context, merchantID string) ([]model.StockKey, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockLedgerEntry, int, error)
	ListDiscrepancies(ctx context.Context, merchantID string, limit int) ([]model.StockDiscrepancy, error)

	InTx(ctx context.Context, fn func(tx TxRepository) error) error
}
