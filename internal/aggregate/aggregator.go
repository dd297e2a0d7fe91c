package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"praxos/internal/model"
)

const (
	defaultDecimals  = 18
	defaultBatchSize = 1000
	maxLineBytes     = 10 << 20
)

// MetricsStore persists window metrics.
type MetricsStore interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom replays the window holding this timestamp and everything after it,
	// ignoring the stored watermark.
	RecomputeFrom uint64
	StateStore    StateStore
}

// Summary counts what a Run did with its input.
type Summary struct {
	Lines   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator rolls indexed vault events into per-vault window metrics.
type Aggregator struct {
	cfg      Config
	store    MetricsStore
	state    VaultState
	logger   *zap.Logger
	decimals map[string]unitDecimals
	open     map[string]*Accumulator
	pending  []model.VaultWindowMetrics
	summary  Summary
	after    uint64
	latestTS uint64
}

func NewAggregator(cfg Config, store MetricsStore, state VaultState, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Aggregator{
		cfg:      cfg,
		store:    store,
		state:    state,
		logger:   logger,
		decimals: make(map[string]unitDecimals),
		open:     make(map[string]*Accumulator),
	}
}

// Summary reports the counters of the last Run.
func (a *Aggregator) Summary() Summary { return a.summary }

// Run aggregates the vault events JSONL file at inputPath.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	switch {
	case a.store == nil:
		return fmt.Errorf("store is nil")
	case a.state == nil:
		return fmt.Errorf("vault state reader is nil")
	case a.cfg.WindowSeconds == 0:
		return fmt.Errorf("window seconds must be > 0")
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.Aggregate(ctx, file)
}

// Aggregate reads newline-delimited vault events from r. Events at or before the
// watermark and VaultCreated events are skipped; malformed lines are counted and logged.
func (a *Aggregator) Aggregate(ctx context.Context, r io.Reader) error {
	a.summary = Summary{}
	after, err := a.startAfter(ctx)
	if err != nil {
		return err
	}
	a.after = after
	a.latestTS = after

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		a.summary.Lines++

		var event model.VaultEvent
		if err := json.Unmarshal(line, &event); err != nil {
			a.summary.Failed++
			a.logger.Warn("decode vault event", zap.Error(err))
			continue
		}
		if event.Timestamp <= after || event.Kind == model.EventVaultCreated {
			a.summary.Skipped++
			continue
		}
		if err := a.ingest(ctx, event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for key, acc := range a.open {
		a.pending = append(a.pending, a.flush(ctx, acc))
		delete(a.open, key)
	}
	if err := a.writePending(ctx); err != nil {
		return err
	}
	if err := a.saveWatermark(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("lines", a.summary.Lines),
		zap.Int("windows", a.summary.Windows),
		zap.Int("skipped", a.summary.Skipped),
		zap.Int("failed", a.summary.Failed),
	)
	return nil
}

func (a *Aggregator) ingest(ctx context.Context, event model.VaultEvent) error {
	start := windowStart(event.Timestamp, a.cfg.WindowSeconds)
	key := vaultKey(event.Vault)

	acc := a.open[key]
	if acc != nil && acc.WindowStart != start {
		a.pending = append(a.pending, a.flush(ctx, acc))
		acc = nil
	}
	if acc == nil {
		acc = NewAccumulator(event, start, start+a.cfg.WindowSeconds)
		a.open[key] = acc
	}

	if err := acc.AddEvent(event); err != nil {
		a.summary.Failed++
		a.logger.Warn("aggregate event", zap.Error(err), zap.String("vault", event.Vault), zap.String("event", event.Kind))
		return nil
	}
	if event.Timestamp > a.latestTS {
		a.latestTS = event.Timestamp
	}

	if len(a.pending) < a.cfg.BatchSize {
		return nil
	}
	if err := a.writePending(ctx); err != nil {
		return err
	}
	return a.saveWatermark(ctx)
}

func (a *Aggregator) writePending(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}
	if err := a.store.UpsertWindowMetrics(ctx, a.pending); err != nil {
		return fmt.Errorf("upsert window metrics: %w", err)
	}
	a.summary.Windows += len(a.pending)
	a.pending = a.pending[:0]
	return nil
}

// startAfter is the timestamp after which events are read. A recompute starts at the
// beginning of the window holding RecomputeFrom so that window is rebuilt in full.
func (a *Aggregator) startAfter(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return beforeWindow(windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds)), nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, _, err := a.cfg.StateStore.Load(ctx, a.cfg.WindowSeconds)
	if err != nil {
		return 0, fmt.Errorf("load watermark: %w", err)
	}
	return last, nil
}

// saveWatermark stores the newest timestamp no open window can still change: the window
// holding the newest event may receive more events on the next run, so it stays unread.
func (a *Aggregator) saveWatermark(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	return a.cfg.StateStore.Save(ctx, a.cfg.WindowSeconds, a.watermark())
}

func (a *Aggregator) watermark() uint64 {
	limit := windowStart(a.latestTS, a.cfg.WindowSeconds)
	if oldest, ok := oldestOpenWindow(a.open); ok && oldest < limit {
		limit = oldest
	}
	if mark := beforeWindow(limit); mark > a.after {
		return mark
	}
	return a.after
}

func (a *Aggregator) flush(ctx context.Context, acc *Accumulator) model.VaultWindowMetrics {
	decimals := a.vaultDecimals(ctx, acc.VaultAddress)

	var totalAssets *string
	tvlMethod := tvlMethodNone
	if acc.LastBlock > 0 {
		total, method, err := a.fetchTVL(ctx, acc.VaultAddress, acc.LastBlock)
		if err != nil {
			a.logger.Warn("tvl fetch failed", zap.String("vault", acc.VaultAddress), zap.Error(err))
		} else {
			val := formatAmount(total, decimals.assets)
			totalAssets = &val
		}
		tvlMethod = method
	}

	return model.VaultWindowMetrics{
		ChainID:        acc.ChainID,
		VaultAddress:   acc.VaultAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		Deposited:      formatAmount(acc.Deposited, decimals.assets),
		Withdrawn:      formatAmount(acc.Withdrawn, decimals.assets),
		NetFlow:        formatAmount(acc.NetFlow(), decimals.assets),
		SharesMinted:   formatAmount(acc.SharesMinted, decimals.shares),
		SharesBurned:   formatAmount(acc.SharesBurned, decimals.shares),
		TotalAssets:    totalAssets,
		TVLMethod:      tvlMethod,
	}
}

func windowStart(ts, size uint64) uint64 {
	return ts - ts%size
}

func vaultKey(address string) string {
	return strings.ToLower(address)
}

// beforeWindow is the last timestamp before a window starting at start.
func beforeWindow(start uint64) uint64 {
	if start == 0 {
		return 0
	}
	return start - 1
}

func oldestOpenWindow(open map[string]*Accumulator) (uint64, bool) {
	var oldest uint64
	found := false
	for _, acc := range open {
		if !found || acc.WindowStart < oldest {
			oldest = acc.WindowStart
			found = true
		}
	}
	return oldest, found
}
