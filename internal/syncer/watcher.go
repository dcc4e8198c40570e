package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second
	// defaultBackfill bounds the first poll when there is no prior state so
	// a fresh watcher does not try to sync the whole chain.
	defaultBackfill = 100
)

// Watcher tails the chain head. Each tick it computes the confirmed target
// and pushes any new span through the engine pipeline, so checkpointing and
// decoding behave exactly as in batch sync.
type Watcher struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	paused    atomic.Bool
	lastBlock uint64
	haveLast  bool
}

func NewWatcher(engine *Engine, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{engine: engine, interval: interval, logger: logger}
}

// Pause makes subsequent ticks no-ops until Resume. Safe from any goroutine.
func (w *Watcher) Pause() { w.paused.Store(true) }

// Resume re-enables processing.
func (w *Watcher) Resume() { w.paused.Store(false) }

// Watch polls until the context is cancelled. Cancellation is the normal way
// to stop and returns nil.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.seed(ctx); err != nil {
		return err
	}

	w.logger.Info("watching for new blocks",
		zap.Duration("poll_interval", w.interval),
		zap.Uint64("confirmations", w.engine.cfg.Confirmations),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped",
				zap.Uint64("blocks_processed", w.engine.Stats().BlocksProcessed),
			)
			return nil
		case <-ticker.C:
			if w.paused.Load() {
				continue
			}
			if err := w.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// seed picks the starting position: checkpoint, then sink state, then a
// short backfill window behind the head.
func (w *Watcher) seed(ctx context.Context) error {
	cp, found, err := w.engine.checkpoints.Load()
	if err != nil {
		return err
	}
	if found {
		w.lastBlock = cp.LastSyncedBlock
		w.haveLast = true
		return nil
	}

	sinkLatest, haveSink, err := w.engine.sink.QueryLatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("query sink state: %w", err)
	}
	if haveSink {
		w.lastBlock = sinkLatest
		w.haveLast = true
		return nil
	}

	head, err := w.engine.reader.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest block: %w", err)
	}
	if head > defaultBackfill {
		w.lastBlock = head - defaultBackfill
	}
	w.haveLast = true
	return nil
}

func (w *Watcher) tick(ctx context.Context) error {
	head, err := w.engine.reader.LatestBlockNumber(ctx)
	if err != nil {
		// Transient head failures are expected while tailing; try again on
		// the next tick.
		w.logger.Warn("head poll failed", zap.Error(err))
		return nil
	}
	if head < w.engine.cfg.Confirmations {
		return nil
	}
	target := head - w.engine.cfg.Confirmations
	if !w.haveLast || target <= w.lastBlock {
		return nil
	}

	from := w.lastBlock + 1
	if err := w.engine.ProcessSpan(ctx, from, target); err != nil {
		return err
	}
	// Advance only to the written frontier. A gap in the span leaves
	// lastBlock behind it, so the next tick refetches from there.
	if frontier, ok := w.engine.Frontier(); ok && frontier >= w.lastBlock {
		w.lastBlock = frontier
	}

	w.logger.Debug("caught up to confirmed head",
		zap.Uint64("target", target),
		zap.Uint64("head", head),
	)
	return nil
}
