package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-ledger-service/internal/pkg/logger"
	pricingdto "github.com/fekuna/omnipos-ledger-service/internal/pricing/dto"
	stockdto "github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
)

type Sweeper interface {
	RunDueScheduledChanges(ctx context.Context, now time.Time) (*pricingdto.SweepResult, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context, merchantID string) (*stockdto.ReconcileSummary, error)
}

type Config struct {
	SweepInterval time.Duration

	// ReconcileInterval of zero, or an empty merchant list, turns the reconcile loop off.
	ReconcileInterval  time.Duration
	ReconcileMerchants []string
}

// Worker drives the scheduled price sweep and the periodic stock reconcile on tickers.
type Worker struct {
	sweeper    Sweeper
	reconciler Reconciler
	cfg        Config
	logger     logger.ZapLogger
	now        func() time.Time
}

func NewWorker(sweeper Sweeper, reconciler Reconciler, cfg Config, log logger.ZapLogger) *Worker {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Worker{
		sweeper:    sweeper,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start blocks until ctx is cancelled and both loops have returned.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop(ctx, "price sweep", w.cfg.SweepInterval, w.sweep)
	}()

	if w.reconciler != nil && w.cfg.ReconcileInterval > 0 && len(w.cfg.ReconcileMerchants) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, "stock reconcile", w.cfg.ReconcileInterval, w.reconcile)
		}()
	}

	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	w.logger.Info("worker started", zap.String("worker", name), zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", zap.String("worker", name))
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	res, err := w.sweeper.RunDueScheduledChanges(ctx, w.now())
	if err != nil {
		// item-level failures are already logged by the sweep
		w.logger.Error("price sweep", zap.Error(err))
		return
	}
	if res.Applied+res.Failed > 0 {
		w.logger.Debug("price sweep tick",
			zap.Int("applied", res.Applied),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)
	}
}

func (w *Worker) reconcile(ctx context.Context) {
	for _, merchantID := range w.cfg.ReconcileMerchants {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.reconciler.ReconcileAll(ctx, merchantID); err != nil {
			w.logger.Error("stock reconcile", zap.String("merchant_id", merchantID), zap.Error(err))
		}
	}
}
