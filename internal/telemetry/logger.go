package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Borislavv/go-seg-cache/config"
	"github.com/Borislavv/go-seg-cache/internal/shared/bytes"
	"github.com/Borislavv/go-seg-cache/internal/store"
	"github.com/Borislavv/go-seg-cache/internal/sweeper"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Cache
	logger   *slog.Logger
	store    *store.Store
	sweeper  sweeper.Sweeper
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Cache,
	logger *slog.Logger,
	store *store.Store,
	sweeper sweeper.Sweeper,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sweeper:  sweeper,
		interval: cfg.Telemetry.StatLogsInterval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg != nil && l.cfg.Telemetry.StatLogsEnabled {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	heapSize := bytes.FmtMem(uint64(l.cfg.Heap.SizeBytes))

	s := newSampler(l.store, l.sweeper)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			st := l.store.Stats()
			l.logger.Info("segcache stats",
				"items_live", st.ItemsLive,
				"bytes_live", bytes.FmtMem(uint64(max(st.BytesLive, 0))),
				"heap", heapSize,
				"segments_free", st.SegmentsFree,
				"segments_total", st.SegmentsTotal,
				"hits", d.hits,
				"misses", d.misses,
				"inserted", d.itemsInserted,
				"deleted", d.itemsDeleted,
				"expired_items", d.itemsExpired,
				"allocated_segments", d.segmentsAllocated,
				"evicted_segments", d.segmentsEvicted,
				"expired_segments", d.segmentsExpired,
				"merged_segments", d.segmentsMerged,
				"sweep_passes", d.sweepPasses,
				"sweep_reclaims", d.sweepSegments,
			)
		}
	}
}
