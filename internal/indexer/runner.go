package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"praxos/internal/model"
	"praxos/internal/storage"
)

// LogSource is the part of the chain client the indexer reads from.
type LogSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Stats summarises one Run.
type Stats struct {
	Batches   int
	Events    int
	Skipped   int
	LastBlock uint64
}

// Runner streams vault and factory logs from the chain, decodes them and writes them to storage.
type Runner struct {
	cfg        RunConfig
	chain      LogSource
	decoder    *Decoder
	sink       storage.Storage
	logger     *zap.Logger
	backoff    Backoff
	checkpoint *CheckpointStore
	seen       map[string]struct{}
	stats      Stats
	now        func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, decoder *Decoder, sink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      source,
		decoder:    decoder,
		sink:       sink,
		logger:     logger,
		backoff:    Backoff{Retries: cfg.MaxRetries, Base: cfg.RetryBackoff, logger: logger},
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		seen:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// Stats reports what the last Run wrote.
func (r *Runner) Stats() Stats { return r.stats }

func (r *Runner) validate() error {
	switch {
	case r.chain == nil:
		return fmt.Errorf("chain client is nil")
	case r.decoder == nil:
		return fmt.Errorf("decoder is nil")
	case r.sink == nil:
		return fmt.Errorf("storage is nil")
	case r.cfg.BatchSize == 0:
		return fmt.Errorf("batch size must be greater than zero")
	case len(r.cfg.Addresses) == 0:
		return fmt.Errorf("at least one address is required")
	}
	return nil
}

// Run indexes [FromBlock, ToBlock], resuming after the checkpoint when one exists.
// ToBlock 0 means the latest block at start.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	r.stats = Stats{}

	topics := r.cfg.Topic0
	if len(topics) == 0 {
		topics = r.decoder.Topics()
	}

	id, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", id)
	}
	chainID := id.Uint64()

	to := r.cfg.ToBlock
	if to == 0 {
		if to, err = r.chain.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	cp, ok, err := r.checkpoint.Load(chainID)
	if err != nil {
		return err
	}
	from := resumeFrom(r.cfg.FromBlock, cp, ok)
	if from != r.cfg.FromBlock {
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastBlock), zap.Uint64("from", from))
	}
	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, br := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processRange(ctx, chainID, br, topics); err != nil {
			return err
		}
		if err := r.checkpoint.Save(chainID, br.To); err != nil {
			return err
		}
		r.stats.Batches++
		r.stats.LastBlock = br.To
	}

	r.logger.Info("indexer done",
		zap.Int("batches", r.stats.Batches),
		zap.Int("events", r.stats.Events),
		zap.Int("skipped", r.stats.Skipped),
		zap.Uint64("last_block", r.stats.LastBlock),
	)
	return nil
}

func (r *Runner) processRange(ctx context.Context, chainID uint64, br BlockRange, topics []common.Hash) error {
	var logs []types.Log
	err := r.backoff.Do(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, br.From, br.To, r.cfg.Addresses, topics)
		return err
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", br.From, br.To, err)
	}

	ingestedAt := r.now().UTC()
	events := make([]model.VaultEvent, 0, len(logs))
	skipped := 0
	for _, log := range logs {
		if log.Removed || r.isDuplicate(log) {
			continue
		}

		var ts uint64
		err := r.backoff.Do(ctx, "block_timestamp", func(ctx context.Context) error {
			var err error
			ts, err = r.chain.BlockTimestamp(ctx, log.BlockNumber)
			return err
		})
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}

		event, err := r.decoder.Decode(chainID, log, ts, ingestedAt)
		if err != nil {
			skipped++
			if !errors.Is(err, ErrUnknownEvent) {
				r.logger.Warn("decode log", zap.Error(err), zap.String("tx", log.TxHash.Hex()), zap.Uint("log_index", log.Index))
			}
			continue
		}
		events = append(events, event)
	}

	if len(events) > 0 {
		if err := r.sink.PutEventBatch(events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
	}
	r.stats.Events += len(events)
	r.stats.Skipped += skipped

	r.logger.Info("batch complete",
		zap.Uint64("from", br.From),
		zap.Uint64("to", br.To),
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped),
	)
	return nil
}

// isDuplicate reports whether log was already handled in this run.
func (r *Runner) isDuplicate(log types.Log) bool {
	key := log.TxHash.Hex() + ":" + fmt.Sprint(log.Index)
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	return false
}
