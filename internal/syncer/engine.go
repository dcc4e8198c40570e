package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"chainsync/internal/chain"
	"chainsync/internal/decode"
	"chainsync/internal/model"
	"chainsync/internal/sink"
)

const (
	DefaultBatchSize          = 10
	DefaultCheckpointInterval = 100
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 500 * time.Millisecond
)

// ChainReader is the node-side surface the engine needs. chain.Client
// satisfies it; tests substitute fakes.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlocksBatch(ctx context.Context, fromBlock, toBlock uint64) []chain.BlockResult
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// BlockHook observes each fully processed block with its decoded events.
// Hooks run after the block's points are written.
type BlockHook func(block *types.Block, events []model.Event)

// Config controls one engine instance.
type Config struct {
	// StartBlock is the lowest block to consider. Checkpoint and sink state
	// can only push the effective start higher, never lower.
	StartBlock uint64
	// EndBlock caps the range when non-zero.
	EndBlock uint64
	// BatchSize is the window width for batch fetching.
	BatchSize uint64
	// Confirmations holds the engine this many blocks behind the head.
	Confirmations uint64
	// CheckpointInterval saves the checkpoint every N processed blocks in
	// addition to the per-window save.
	CheckpointInterval uint64
	// MaxRetries and RetryBackoff tune the per-call retry loop.
	MaxRetries   int
	RetryBackoff time.Duration
	// ExtractRawLogs additionally records every log in a window, decoded
	// or not, under the events measurement.
	ExtractRawLogs bool
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}

// Engine drives the batch sync loop: resolve the range, fetch windows,
// decode, write, checkpoint. The checkpoint never advances past a block that
// was not durably written.
type Engine struct {
	reader      ChainReader
	sink        sink.Sink
	decoder     *decode.Decoder
	checkpoints *CheckpointStore
	cfg         Config
	logger      *zap.Logger
	hooks       []BlockHook

	chainTag string
	signer   types.Signer

	stats SyncStats
	// frontier is the highest block with every block at or below it written.
	// gapBelow pins it once a block in the span fails; from that point on no
	// further block in the span is written, so the sink can never hold state
	// above a gap the checkpoint still has to cover.
	frontier    uint64
	hasFrontier bool
	gapBelow    bool
	sinceSave   uint64
}

// fetchError marks a per-block RPC failure. The block is skipped and the
// checkpoint held back; the run continues.
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return e.err.Error() }

func (e *fetchError) Unwrap() error { return e.err }

func NewEngine(reader ChainReader, sk sink.Sink, decoder *decode.Decoder, checkpoints *CheckpointStore, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkpoints == nil {
		checkpoints = NewCheckpointStore("", false)
	}
	return &Engine{
		reader:      reader,
		sink:        sk,
		decoder:     decoder,
		checkpoints: checkpoints,
		cfg:         cfg.withDefaults(),
		logger:      logger,
	}
}

// AddBlockHook registers a hook. Not safe to call once Run has started.
func (e *Engine) AddBlockHook(hook BlockHook) {
	e.hooks = append(e.hooks, hook)
}

// Stats returns a copy of the accumulated counters.
func (e *Engine) Stats() SyncStats {
	return e.stats
}

// Frontier returns the highest block with every block at or below it durably
// written, and whether any block has been written at all.
func (e *Engine) Frontier() (uint64, bool) {
	return e.frontier, e.hasFrontier
}

// Run performs one full batch sync over the resolved range and returns the
// final counters. An empty range is a successful no-op.
func (e *Engine) Run(ctx context.Context) (SyncStats, error) {
	if err := e.initChain(ctx); err != nil {
		return e.stats, err
	}

	from, to, ok, err := e.resolveRange(ctx)
	if err != nil {
		return e.stats, err
	}
	if !ok {
		e.logger.Info("already up to date, nothing to sync")
		return e.stats, nil
	}

	e.logger.Info("starting sync",
		zap.Uint64("from_block", from),
		zap.Uint64("to_block", to),
		zap.Uint64("blocks", to-from+1),
		zap.Uint64("batch_size", e.cfg.BatchSize),
	)

	if err := e.ProcessSpan(ctx, from, to); err != nil {
		return e.stats, err
	}

	e.logger.Info("sync complete",
		zap.Uint64("blocks_processed", e.stats.BlocksProcessed),
		zap.Uint64("transactions", e.stats.TransactionsProcessed),
		zap.Uint64("events_decoded", e.stats.EventsDecoded),
		zap.Uint64("errors", e.stats.Errors),
		zap.Float64("blocks_per_second", e.stats.BlocksPerSecond),
	)
	return e.stats, nil
}

// initChain resolves the chain ID and derives the signer used to recover
// transaction senders. Idempotent.
func (e *Engine) initChain(ctx context.Context) error {
	if e.signer != nil {
		return nil
	}
	var chainID *big.Int
	err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = e.reader.ChainID(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("resolve chain id: %w", err)
	}
	e.chainTag = chainID.String()
	e.signer = types.LatestSignerForChainID(chainID)
	return nil
}

// resolveRange computes the effective [from, to] window. Resume state comes
// from the checkpoint first, then the sink; the higher of the two wins so a
// stale checkpoint cannot cause rewrites.
func (e *Engine) resolveRange(ctx context.Context) (uint64, uint64, bool, error) {
	from := e.cfg.StartBlock

	cp, found, err := e.checkpoints.Load()
	if err != nil {
		return 0, 0, false, err
	}
	if found {
		e.logger.Info("resuming from checkpoint",
			zap.Uint64("last_synced_block", cp.LastSyncedBlock),
			zap.String("saved_at", cp.Timestamp),
		)
		if cp.LastSyncedBlock+1 > from {
			from = cp.LastSyncedBlock + 1
		}
		e.stats.BlocksPerSecond = cp.AvgBlocksPerSecond
	}

	sinkLatest, haveSink, err := e.sink.QueryLatestBlock(ctx)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query sink state: %w", err)
	}
	if haveSink && sinkLatest+1 > from {
		from = sinkLatest + 1
	}

	var head uint64
	err = withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = e.reader.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, 0, false, fmt.Errorf("fetch latest block: %w", err)
	}
	if head < e.cfg.Confirmations {
		return 0, 0, false, nil
	}
	to := head - e.cfg.Confirmations
	if e.cfg.EndBlock > 0 && e.cfg.EndBlock < to {
		to = e.cfg.EndBlock
	}

	if from > to {
		return 0, 0, false, nil
	}
	return from, to, true, nil
}

// ProcessSpan syncs an explicit inclusive range through the batch pipeline.
// Run and the realtime watcher both come through here.
func (e *Engine) ProcessSpan(ctx context.Context, from, to uint64) error {
	if err := e.initChain(ctx); err != nil {
		return err
	}

	windows, err := SplitRange(from, to, e.cfg.BatchSize)
	if err != nil {
		return err
	}
	e.gapBelow = false
	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processWindow(ctx, window); err != nil {
			return err
		}
		if e.gapBelow {
			e.logger.Warn("span stopped at gap, next run resumes from checkpoint",
				zap.Uint64("span_to", to),
			)
			break
		}
	}
	return nil
}

func (e *Engine) processWindow(ctx context.Context, window BlockRange) error {
	started := time.Now()
	results := e.reader.BlocksBatch(ctx, window.From, window.To)

	if e.cfg.ExtractRawLogs {
		e.extractRawLogs(ctx, window, results)
	}

	windowProcessed := uint64(0)
	for _, result := range results {
		if result.Err != nil || result.Block == nil {
			e.stats.Errors++
			e.gapBelow = true
			e.logger.Warn("block fetch failed, checkpoint held back",
				zap.Uint64("block", result.Number),
				zap.Error(result.Err),
			)
			continue
		}
		if e.gapBelow {
			// Blocks above a gap are left for the next run. Writing them
			// would let sink state outrun the checkpoint, and the resume
			// computation would then step over the gap for good.
			e.stats.SkippedBlocks++
			continue
		}

		if err := e.processBlock(ctx, result.Block); err != nil {
			var skip *fetchError
			if errors.As(err, &skip) {
				e.stats.Errors++
				e.gapBelow = true
				e.logger.Warn("block processing failed, checkpoint held back",
					zap.Uint64("block", result.Number),
					zap.Error(err),
				)
				continue
			}
			return fmt.Errorf("process block %d: %w", result.Number, err)
		}

		windowProcessed++
		e.frontier = result.Number
		e.hasFrontier = true
		e.sinceSave++
		if e.sinceSave >= e.cfg.CheckpointInterval {
			if err := e.saveCheckpoint(); err != nil {
				return err
			}
		}
	}

	elapsed := time.Since(started).Seconds()
	if elapsed > 0 && windowProcessed > 0 {
		sample := float64(windowProcessed) / elapsed
		e.stats.BlocksPerSecond = ewma(e.stats.BlocksPerSecond, sample)
	}

	if err := e.saveCheckpoint(); err != nil {
		return err
	}

	e.logger.Info("window processed",
		zap.Uint64("from_block", window.From),
		zap.Uint64("to_block", window.To),
		zap.Uint64("blocks_processed", e.stats.BlocksProcessed),
		zap.Uint64("events_decoded", e.stats.EventsDecoded),
		zap.Float64("blocks_per_second", e.stats.BlocksPerSecond),
	)
	return nil
}

// extractRawLogs records every log of the window. Failures here degrade the
// output but never stall the sync.
func (e *Engine) extractRawLogs(ctx context.Context, window BlockRange, results []chain.BlockResult) {
	var logs []types.Log
	err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = e.reader.FilterLogs(ctx, window.From, window.To, nil, nil)
		return err
	})
	if err != nil {
		e.stats.Errors++
		e.logger.Warn("raw log extraction failed",
			zap.Uint64("from_block", window.From),
			zap.Uint64("to_block", window.To),
			zap.Error(err),
		)
		return
	}
	if len(logs) == 0 {
		return
	}

	timestamps := make(map[uint64]uint64, len(results))
	for _, result := range results {
		if result.Block != nil {
			timestamps[result.Number] = result.Block.Time()
		}
	}

	points := make([]sink.Point, 0, len(logs))
	for _, log := range logs {
		points = append(points, rawLogPoint(e.chainTag, log, timestamps[log.BlockNumber]))
	}
	if err := e.writePoints(ctx, points); err != nil {
		e.stats.Errors++
		e.logger.Warn("raw log write failed", zap.Error(err))
		return
	}
	e.stats.RawLogs += uint64(len(logs))
}

// processBlock builds and writes all points for one block. A write failure
// aborts the sync so the checkpoint cannot pass an unwritten block.
func (e *Engine) processBlock(ctx context.Context, block *types.Block) error {
	points := make([]sink.Point, 0, 1+2*len(block.Transactions()))
	points = append(points, blockPoint(e.chainTag, block))

	var events []model.Event
	for _, tx := range block.Transactions() {
		var receipt *types.Receipt
		err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			receipt, err = e.reader.TransactionReceipt(ctx, tx.Hash())
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Exhausted retries on a receipt are a per-block failure, the
			// same as a failed block fetch.
			return &fetchError{err: fmt.Errorf("receipt %s: %w", tx.Hash().Hex(), err)}
		}
		if receipt == nil {
			e.stats.Errors++
			e.logger.Warn("missing receipt, transaction skipped",
				zap.Uint64("block", block.NumberU64()),
				zap.String("tx", tx.Hash().Hex()),
			)
			continue
		}

		points = append(points, transactionPoint(e.chainTag, block, tx, receipt, e.signer))
		e.stats.TransactionsProcessed++

		for _, log := range receipt.Logs {
			event, err := e.decoder.Decode(*log, block.Time())
			if err != nil {
				e.stats.Errors++
				e.logger.Debug("undecodable log skipped",
					zap.Uint64("block", log.BlockNumber),
					zap.String("tx", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				continue
			}
			if event == nil {
				continue
			}
			points = append(points, eventPoint(e.chainTag, *event))
			events = append(events, *event)
			e.stats.Record(event.Category)
		}
	}

	if err := e.writePoints(ctx, points); err != nil {
		return err
	}
	e.stats.BlocksProcessed++

	for _, hook := range e.hooks {
		hook(block, events)
	}
	return nil
}

func (e *Engine) writePoints(ctx context.Context, points []sink.Point) error {
	if len(points) == 0 {
		return nil
	}
	return withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		return e.sink.WritePoints(ctx, points)
	})
}

func (e *Engine) saveCheckpoint() error {
	if !e.hasFrontier {
		return nil
	}
	e.sinceSave = 0
	if err := e.checkpoints.Save(e.frontier, e.stats.BlocksProcessed, e.stats.BlocksPerSecond); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
