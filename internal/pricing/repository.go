package pricing

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

// TxRepository is bound to one transaction.
type TxRepository interface {
	// GetSubProduct returns nil when the sub-product does not exist for the merchant.
	GetSubProduct(ctx context.Context, merchantID, subProductID string) (*model.SubProduct, error)
	UpdatePrice(ctx context.Context, sp *model.SubProduct, expectedVersion int64) error
	AppendAudit(ctx context.Context, rec *model.PriceAuditRecord) error
	MarkApplied(ctx context.Context, id, claimToken string, at time.Time) error
}

type Repository interface {
	GetSubProduct(ctx context.Context, merchantID, subProductID string) (*model.SubProduct, error)

	CreateSchedule(ctx context.Context, s *model.ScheduledPriceChange) error
	// GetSchedule returns nil when no schedule with that id belongs to the merchant.
	GetSchedule(ctx context.Context, merchantID, id string) (*model.ScheduledPriceChange, error)
	ListSchedules(ctx context.Context, filters *dto.ScheduleFilters) ([]model.ScheduledPriceChange, int, error)
	// CancelSchedule moves a pending schedule to cancelled. It reports false when the row was not pending.
	CancelSchedule(ctx context.Context, merchantID, id, actor string, at time.Time) (bool, error)

	ReleaseStaleClaims(ctx context.Context, claimedBefore, now time.Time) (int64, error)
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]model.ScheduledPriceChange, error)
	// ClaimSchedule moves a pending schedule to processing under token. It reports false when another worker won.
	ClaimSchedule(ctx context.Context, id, token string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, token, reason string, at time.Time) error

	ListAudit(ctx context.Context, filters *dto.AuditFilters) ([]model.PriceAuditRecord, int, error)

	InTx(ctx context.Context, fn func(tx TxRepository) error) error
}
