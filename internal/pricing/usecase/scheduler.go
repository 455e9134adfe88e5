package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
)

// RunDueScheduledChanges applies every pending change whose effective time has passed.
// Items are claimed one by one, so any number of sweeps may run at once. A failed item is marked
// failed with its error and never blocks the rest of the batch; it is not retried.
func (uc *pricingUseCase) RunDueScheduledChanges(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	now = now.UTC()
	result := &dto.SweepResult{}

	released, err := uc.repo.ReleaseStaleClaims(ctx, now.Add(-uc.claimTimeout), now)
	if err != nil {
		return result, err
	}
	if released > 0 {
		uc.logger.Warn("released stale schedule claims", zap.Int64("count", released))
	}

	due, err := uc.repo.DueSchedules(ctx, now, uc.batchSize)
	if err != nil {
		return result, err
	}

	var errs error
	for i := range due {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		s := &due[i]

		token := uuid.NewString()
		claimed, err := uc.repo.ClaimSchedule(ctx, s.ID, token, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("claim %s: %w", s.ID, err))
			continue
		}
		if !claimed {
			result.Skipped++
			continue
		}

		err = uc.applySchedule(ctx, s, token)
		if err == nil {
			result.Applied++
			continue
		}

		// Any apply error is terminal for the item. Only a sweep that dies before this point
		// leaves a claim in processing for the stale-claim release.
		if markErr := uc.repo.MarkFailed(ctx, s.ID, token, err.Error(), uc.now().UTC()); markErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark %s failed: %w", s.ID, multierr.Append(err, markErr)))
			continue
		}
		result.Failed++

		fields := []zap.Field{
			zap.String("schedule_id", s.ID),
			zap.String("sub_product_id", s.ProductID),
			zap.Error(err),
		}
		if isBusinessFailure(err) {
			uc.logger.Warn("scheduled price change failed", fields...)
		} else {
			uc.logger.Error("scheduled price change failed", fields...)
			errs = multierr.Append(errs, fmt.Errorf("apply %s: %w", s.ID, err))
		}
	}

	if errs != nil {
		uc.logger.Error("scheduled price sweep finished with errors", zap.Error(errs))
	}
	uc.logger.Info("scheduled price sweep finished",
		zap.Int("due", len(due)),
		zap.Int("applied", result.Applied),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, errs
}

func (uc *pricingUseCase) applySchedule(ctx context.Context, s *model.ScheduledPriceChange, token string) error {
	scheduleID := s.ID
	_, err := uc.applyPrice(ctx, &priceWrite{
		merchantID:   s.MerchantID,
		subProductID: s.ProductID,
		newPrice:     s.NewPrice,
		reason:       "scheduled price change " + s.ID,
		actor:        model.SchedulerActor,
		source:       model.AuditSourceScheduled,
		scheduleID:   &scheduleID,
		claimToken:   token,
	})
	return err
}

// isBusinessFailure separates rejected changes from infrastructure errors, which are also
// reported in the sweep's returned error.
func isBusinessFailure(err error) bool {
	return apperror.IsNotFound(err) || apperror.IsValidation(err) || apperror.IsConflict(err)
}
