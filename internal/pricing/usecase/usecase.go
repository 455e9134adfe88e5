package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/event"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

const (
	defaultBatchSize    = 100
	defaultClaimTimeout = 5 * time.Minute
)

type pricingUseCase struct {
	repo         pricing.Repository
	locker       lock.Locker
	publisher    event.Publisher
	logger       logger.ZapLogger
	now          func() time.Time
	batchSize    int
	claimTimeout time.Duration
}

type Option func(*pricingUseCase)

func WithClock(now func() time.Time) Option {
	return func(uc *pricingUseCase) { uc.now = now }
}

// WithSweep sets how many due items one sweep handles and how long a claim may stay in processing.
func WithSweep(batchSize int, claimTimeout time.Duration) Option {
	return func(uc *pricingUseCase) {
		if batchSize > 0 {
			uc.batchSize = batchSize
		}
		if claimTimeout > 0 {
			uc.claimTimeout = claimTimeout
		}
	}
}

func NewPricingUseCase(repo pricing.Repository, locker lock.Locker, publisher event.Publisher, log logger.ZapLogger, opts ...Option) pricing.UseCase {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	uc := &pricingUseCase{
		repo:         repo,
		locker:       locker,
		publisher:    publisher,
		logger:       log,
		now:          time.Now,
		batchSize:    defaultBatchSize,
		claimTimeout: defaultClaimTimeout,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func lockKey(merchantID, subProductID string) string {
	return "price:" + merchantID + ":" + subProductID
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return apperror.NewValidationError("price cannot be negative")
	}
	if !p.Equal(p.Round(2)) {
		return apperror.NewValidationError("price supports at most 2 decimal places")
	}
	return nil
}

// priceWrite is one change flowing through the shared price write path.
type priceWrite struct {
	merchantID   string
	subProductID string
	newPrice     decimal.Decimal
	reason       string
	actor        string
	source       model.AuditSource
	scheduleID   *string
	claimToken   string
}

// writePrice updates the price and appends its audit record in tx. Scheduled writes also move
// their schedule to applied in the same tx.
func (uc *pricingUseCase) writePrice(ctx context.Context, tx pricing.TxRepository, w *priceWrite, now time.Time) (*model.PriceAuditRecord, error) {
	sp, err := tx.GetSubProduct(ctx, w.merchantID, w.subProductID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, apperror.NewNotFoundError("sub-product %s", w.subProductID)
	}
	if sp.Price.Equal(w.newPrice) {
		return nil, apperror.NewValidationError("price of %s is already %s", w.subProductID, w.newPrice.StringFixed(2))
	}

	old := sp.Price
	expected := sp.Version
	sp.Price = w.newPrice
	sp.Version = expected + 1
	sp.UpdatedAt = now
	if err := tx.UpdatePrice(ctx, sp, expected); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperror.NewInternalError("generate audit id", err)
	}
	rec := &model.PriceAuditRecord{
		ID:           id.String(),
		MerchantID:   w.merchantID,
		SubProductID: w.subProductID,
		Changes:      model.PriceChanges{model.PriceField: {Old: old, New: w.newPrice}},
		Reason:       w.reason,
		ChangedBy:    w.actor,
		Source:       w.source,
		ScheduleID:   w.scheduleID,
		ChangedAt:    now,
	}
	if err := tx.AppendAudit(ctx, rec); err != nil {
		return nil, err
	}

	if w.scheduleID != nil {
		if err := tx.MarkApplied(ctx, *w.scheduleID, w.claimToken, now); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// applyPrice runs writePrice under the sub-product lock and announces the result.
func (uc *pricingUseCase) applyPrice(ctx context.Context, w *priceWrite) (*model.PriceAuditRecord, error) {
	unlock, err := uc.locker.Lock(ctx, lockKey(w.merchantID, w.subProductID))
	if err != nil {
		return nil, apperror.NewInternalError("acquire price lock", err)
	}
	defer unlock()

	var rec *model.PriceAuditRecord
	err = uc.repo.InTx(ctx, func(tx pricing.TxRepository) error {
		var err error
		rec, err = uc.writePrice(ctx, tx, w, uc.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, event.Event{
		EventType:  event.TypePriceChanged,
		MerchantID: rec.MerchantID,
		Key:        rec.SubProductID,
		Payload:    rec,
	})
	return rec, nil
}

func (uc *pricingUseCase) AdjustPriceNow(ctx context.Context, input *dto.AdjustPriceInput) (string, error) {
	if input.MerchantID == "" {
		return "", apperror.NewValidationError("merchant_id is required")
	}
	if input.SubProductID == "" {
		return "", apperror.NewValidationError("sub_product_id is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return "", apperror.NewValidationError("reason is required")
	}
	if input.UserID == "" {
		return "", apperror.NewValidationError("actor is required")
	}
	if err := validatePrice(input.NewPrice); err != nil {
		return "", err
	}

	rec, err := uc.applyPrice(ctx, &priceWrite{
		merchantID:   input.MerchantID,
		subProductID: input.SubProductID,
		newPrice:     input.NewPrice,
		reason:       strings.TrimSpace(input.Reason),
		actor:        input.UserID,
		source:       model.AuditSourceManual,
	})
	if err != nil {
		return "", err
	}

	uc.logger.Info("price adjusted",
		zap.String("merchant_id", rec.MerchantID),
		zap.String("sub_product_id", rec.SubProductID),
		zap.String("new_price", input.NewPrice.StringFixed(2)),
		zap.String("actor", input.UserID),
	)
	return rec.ID, nil
}

func (uc *pricingUseCase) SchedulePriceChange(ctx context.Context, input *dto.SchedulePriceChangeInput) (string, error) {
	if input.MerchantID == "" {
		return "", apperror.NewValidationError("merchant_id is required")
	}
	if input.ProductID == "" {
		return "", apperror.NewValidationError("product_id is required")
	}
	if input.UserID == "" {
		return "", apperror.NewValidationError("actor is required")
	}
	if err := validatePrice(input.NewPrice); err != nil {
		return "", err
	}

	now := uc.now().UTC()
	effectiveAt := input.EffectiveAt.UTC()
	if !effectiveAt.After(now) {
		return "", apperror.NewValidationError("effective_at must be in the future")
	}

	sp, err := uc.repo.GetSubProduct(ctx, input.MerchantID, input.ProductID)
	if err != nil {
		return "", err
	}
	if sp == nil {
		return "", apperror.NewNotFoundError("sub-product %s", input.ProductID)
	}

	s := &model.ScheduledPriceChange{
		ID:           uuid.NewString(),
		MerchantID:   input.MerchantID,
		ProductID:    input.ProductID,
		CurrentPrice: sp.Price,
		NewPrice:     input.NewPrice,
		EffectiveAt:  effectiveAt,
		ScheduledBy:  input.UserID,
		Status:       model.SchedulePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.CreateSchedule(ctx, s); err != nil {
		return "", err
	}

	uc.logger.Info("price change scheduled",
		zap.String("schedule_id", s.ID),
		zap.String("sub_product_id", s.ProductID),
		zap.Time("effective_at", s.EffectiveAt),
	)
	return s.ID, nil
}

func (uc *pricingUseCase) CancelScheduledChange(ctx context.Context, input *dto.CancelScheduleInput) error {
	if input.MerchantID == "" || input.ScheduleID == "" {
		return apperror.NewValidationError("merchant_id and schedule_id are required")
	}
	if input.UserID == "" {
		return apperror.NewValidationError("actor is required")
	}

	ok, err := uc.repo.CancelSchedule(ctx, input.MerchantID, input.ScheduleID, input.UserID, uc.now().UTC())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	s, err := uc.repo.GetSchedule(ctx, input.MerchantID, input.ScheduleID)
	if err != nil {
		return err
	}
	if s == nil {
		return apperror.NewNotFoundError("scheduled change %s", input.ScheduleID)
	}
	return apperror.NewInvalidStateError("scheduled change %s is %s", s.ID, s.Status)
}

func (uc *pricingUseCase) GetScheduledChange(ctx context.Context, merchantID, id string) (*model.ScheduledPriceChange, error) {
	s, err := uc.repo.GetSchedule(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperror.NewNotFoundError("scheduled change %s", id)
	}
	return s, nil
}

func (uc *pricingUseCase) ListScheduledChanges(ctx context.Context, filters *dto.ScheduleFilters) ([]model.ScheduledPriceChange, int, error) {
	if filters.MerchantID == "" {
		return nil, 0, apperror.NewValidationError("merchant_id is required")
	}
	return uc.repo.ListSchedules(ctx, filters)
}

func (uc *pricingUseCase) ListPriceAudit(ctx context.Context, filters *dto.AuditFilters) ([]model.PriceAuditRecord, int, error) {
	if filters.MerchantID == "" {
		return nil, 0, apperror.NewValidationError("merchant_id is required")
	}
	return uc.repo.ListAudit(ctx, filters)
}

func (uc *pricingUseCase) publish(ctx context.Context, e event.Event) {
	e.EventID = uuid.NewString()
	e.Timestamp = uc.now().UTC()
	if err := uc.publisher.Publish(ctx, e); err != nil {
		uc.logger.Error("failed to publish event",
			zap.String("event_type", e.EventType),
			zap.String("key", e.Key),
			zap.Error(err),
		)
	}
}
