package pricing

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

type UseCase interface {
	AdjustPriceNow(ctx context.Context, input *dto.AdjustPriceInput) (string, error)
	SchedulePriceChange(ctx context.Context, input *dto.SchedulePriceChangeInput) (string, error)
	CancelScheduledChange(ctx context.Context, input *dto.CancelScheduleInput) error
	GetScheduledChange(ctx context.Context, merchantID, id string) (*model.ScheduledPriceChange, error)
	ListScheduledChanges(ctx context.Context, filters *dto.ScheduleFilters) ([]model.ScheduledPriceChange, int, error)
	ListPriceAudit(ctx context.Context, filters *dto.AuditFilters) ([]model.PriceAuditRecord, int, error)

	RunDueScheduledChanges(ctx context.Context, now time.Time) (*dto.SweepResult, error)
}
