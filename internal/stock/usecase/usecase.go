package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/event"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/lock"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

const defaultCacheTTL = 5 * time.Minute

type stockUseCase struct {
	repo      stock.Repository
	locker    lock.Locker
	cache     stock.Cache
	publisher event.Publisher
	logger    logger.ZapLogger
	now       func() time.Time
	cacheTTL  time.Duration
}

type Option func(*stockUseCase)

func WithClock(now func() time.Time) Option {
	return func(uc *stockUseCase) { uc.now = now }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(uc *stockUseCase) { uc.cacheTTL = ttl }
}

// NewStockUseCase wires the ledger write path. cache may be nil; publisher defaults to a no-op.
func NewStockUseCase(repo stock.Repository, locker lock.Locker, cache stock.Cache, publisher event.Publisher, log logger.ZapLogger, opts ...Option) stock.UseCase {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	uc := &stockUseCase{
		repo:      repo,
		locker:    locker,
		cache:     cache,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func cacheKey(key model.StockKey) string {
	return "stock:" + key.MerchantID + ":" + key.SizeID + ":" + key.SubProductID
}

func (uc *stockUseCase) RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (int64, error) {
	direction, err := validateMovement(input)
	if err != nil {
		return 0, err
	}

	ok, err := uc.repo.SizeBelongsTo(ctx, input.MerchantID, input.SizeID, input.SubProductID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperror.NewNotFoundError("size %s of sub-product %s", input.SizeID, input.SubProductID)
	}

	key := input.Key()
	unlock, err := uc.locker.Lock(ctx, key.String())
	if err != nil {
		return 0, apperror.NewInternalError("acquire stock lock", err)
	}
	defer unlock()

	var entry *model.StockLedgerEntry
	err = uc.repo.InTx(ctx, func(tx stock.TxRepository) error {
		counter, err := tx.GetCounter(ctx, key)
		if err != nil {
			return err
		}

		var prior, lastSeq int64
		if counter != nil {
			prior, lastSeq = counter.CurrentQuantity, counter.LastSeq
		}

		resulting := direction.Apply(prior, input.Quantity)
		if resulting < 0 {
			return &apperror.InsufficientStockError{
				SizeID:       input.SizeID,
				SubProductID: input.SubProductID,
				Requested:    input.Quantity,
				Available:    prior,
			}
		}

		now := uc.now().UTC()
		id, err := uuid.NewV7()
		if err != nil {
			return apperror.NewInternalError("generate entry id", err)
		}

		entry = &model.StockLedgerEntry{
			ID:                id.String(),
			MerchantID:        input.MerchantID,
			SizeID:            input.SizeID,
			SubProductID:      input.SubProductID,
			Seq:               lastSeq + 1,
			MovementType:      input.MovementType,
			Direction:         direction,
			Quantity:          input.Quantity,
			PriorQuantity:     prior,
			ResultingQuantity: resulting,
			Reason:            strings.TrimSpace(input.Reason),
			PerformedBy:       input.UserID,
			OccurredAt:        now,
		}
		if input.ReferenceID != "" {
			ref := input.ReferenceID
			entry.ReferenceID = &ref
		}

		next := &model.StockCounter{
			MerchantID:        input.MerchantID,
			SizeID:            input.SizeID,
			SubProductID:      input.SubProductID,
			CurrentQuantity:   resulting,
			LastLedgerEntryID: entry.ID,
			LastSeq:           entry.Seq,
			UpdatedAt:         now,
		}
		if counter == nil {
			next.Version = 1
			if err := tx.InsertCounter(ctx, next); err != nil {
				return err
			}
		} else {
			next.Version = counter.Version + 1
			if err := tx.UpdateCounter(ctx, next, counter.Version); err != nil {
				return err
			}
		}

		return tx.AppendEntry(ctx, entry)
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			uc.logger.Info("movement rejected",
				zap.String("key", key.String()),
				zap.String("movement_type", string(input.MovementType)),
				zap.Error(err),
			)
		}
		return 0, err
	}

	uc.refreshCache(ctx, key, entry.ResultingQuantity)
	uc.publish(ctx, event.Event{
		EventType:  event.TypeStockMovementRecorded,
		MerchantID: entry.MerchantID,
		Key:        key.String(),
		Payload:    entry,
	})

	return entry.ResultingQuantity, nil
}

func validateMovement(input *dto.RecordMovementInput) (model.Direction, error) {
	if input.MerchantID == "" {
		return "", apperror.NewValidationError("merchant_id is required")
	}
	if input.SizeID == "" || input.SubProductID == "" {
		return "", apperror.NewValidationError("size_id and sub_product_id are required")
	}
	if input.Quantity <= 0 {
		return "", apperror.NewValidationError("quantity must be greater than zero")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return "", apperror.NewValidationError("reason is required")
	}
	if input.UserID == "" {
		return "", apperror.NewValidationError("actor is required")
	}
	direction, err := input.MovementType.ResolveDirection(input.Direction)
	if err != nil {
		return "", apperror.NewValidationError("%v", err)
	}
	return direction, nil
}

func (uc *stockUseCase) ReadStock(ctx context.Context, key model.StockKey) (int64, error) {
	if key.MerchantID == "" || key.SizeID == "" || key.SubProductID == "" {
		return 0, apperror.NewValidationError("merchant, size and sub-product are required")
	}

	ck := cacheKey(key)
	if uc.cache != nil {
		if val, err := uc.cache.Get(ctx, ck); err == nil {
			if qty, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				return qty, nil
			}
		}
	}

	counter, err := uc.repo.GetCounter(ctx, key)
	if err != nil {
		return 0, err
	}
	var qty int64
	if counter != nil {
		qty = counter.CurrentQuantity
	} else {
		ok, err := uc.repo.SizeBelongsTo(ctx, key.MerchantID, key.SizeID, key.SubProductID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, apperror.NewNotFoundError("size %s of sub-product %s", key.SizeID, key.SubProductID)
		}
	}

	uc.fillCache(ctx, key, qty)
	return qty, nil
}

func (uc *stockUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockLedgerEntry, int, error) {
	if filters.MerchantID == "" {
		return nil, 0, apperror.NewValidationError("merchant_id is required")
	}
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *stockUseCase) refreshCache(ctx context.Context, key model.StockKey, qty int64) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Set(ctx, cacheKey(key), strconv.FormatInt(qty, 10), uc.cacheTTL); err != nil {
		uc.logger.Warn("failed to cache stock quantity", zap.String("key", key.String()), zap.Error(err))
	}
}

// fillCache stores a quantity read outside the pair lock. A value already present came from a
// committed write at least as new as this read, so it is kept.
func (uc *stockUseCase) fillCache(ctx context.Context, key model.StockKey, qty int64) {
	if uc.cache == nil {
		return
	}
	if _, err := uc.cache.SetNX(ctx, cacheKey(key), strconv.FormatInt(qty, 10), uc.cacheTTL); err != nil {
		uc.logger.Warn("failed to cache stock quantity", zap.String("key", key.String()), zap.Error(err))
	}
}

func (uc *stockUseCase) publish(ctx context.Context, e event.Event) {
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
