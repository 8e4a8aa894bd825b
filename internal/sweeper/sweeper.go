// Package sweeper runs the eager expire sweep on a schedule so expired
// segments are reclaimed in O(segments) without waiting for write
// pressure.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/Borislavv/go-seg-cache/config"
	"github.com/Borislavv/go-seg-cache/internal/shared/rate"
	"github.com/Borislavv/go-seg-cache/internal/store"
)

type Sweeper interface {
	SweeperMetrics() (passes, hits, segments int64)
	Close() error
}

type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.SweepCfg
	store    *store.Store
	logger   *slog.Logger
	jitter   *rate.Jitter
	counters *sweeperCounters
}

func New(
	ctx context.Context,
	cfg *config.SweepCfg,
	logger *slog.Logger,
	store *store.Store,
) Sweeper {
	if !cfg.Enabled() {
		return &NoOpSweeper{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		store:    store,
		logger:   logger,
		jitter:   rate.NewJitter(ctx, cfg.CallsPerSec),
		counters: newSweeperCounters(),
	}).run()
}

func (w *SweepWorker) SweeperMetrics() (passes, hits, segments int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) Close() error {
	w.cancel()
	return nil
}

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("expire sweeper is running", "calls_per_sec", w.cfg.CallsPerSec)

	go func() {
		defer w.logger.Info("expire sweeper is stopped")
		w.provider()
	}()

	return w
}

func (w *SweepWorker) provider() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.jitter.Chan():
			w.counters.passes.Add(1)
			if n := w.store.ExpireSweep(); n > 0 {
				w.counters.hits.Add(1)
				w.counters.segments.Add(int64(n))
			}
		}
	}
}
