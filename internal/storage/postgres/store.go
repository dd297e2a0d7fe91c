package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"praxos/internal/metadata"
	"praxos/internal/model"
)

// Store provides Postgres persistence for vault metadata, events and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get returns the metadata stored for vault.
func (s *Store) Get(ctx context.Context, vault string) (model.VaultMetadata, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM vault_metadata WHERE vault_address=$1`, metadata.Key(vault))
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VaultMetadata{}, metadata.ErrNotFound
		}
		return model.VaultMetadata{}, err
	}
	var meta model.VaultMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.VaultMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// Put inserts or replaces the metadata of a vault.
func (s *Store) Put(ctx context.Context, meta model.VaultMetadata) error {
	key := metadata.Key(meta.VaultAddress)
	if key == "" {
		return fmt.Errorf("vault address required")
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vault_metadata (vault_address, data, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (vault_address) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, key, raw)
	return err
}

// GetBatch returns the stored entries keyed by the address as requested.
func (s *Store) GetBatch(ctx context.Context, vaults []string) (map[string]model.VaultMetadata, error) {
	out := make(map[string]model.VaultMetadata, len(vaults))
	if len(vaults) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(vaults))
	for _, v := range vaults {
		keys = append(keys, metadata.Key(v))
	}

	rows, err := s.pool.Query(ctx, `SELECT vault_address, data FROM vault_metadata WHERE vault_address = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]model.VaultMetadata)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var meta model.VaultMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", key, err)
		}
		found[key] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, v := range vaults {
		if meta, ok := found[metadata.Key(v)]; ok {
			out[v] = meta
		}
	}
	return out, nil
}

// PutEventBatch stores decoded vault events, ignoring ones already stored.
func (s *Store) PutEventBatch(events []model.VaultEvent) error {
	return s.InsertEvents(context.Background(), events)
}

// InsertEvents stores decoded vault events, ignoring ones already stored.
func (s *Store) InsertEvents(ctx context.Context, events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO vault_events (
				chain_id, tx_hash, log_index, block_number, block_hash, contract, kind, vault,
				sender, owner, receiver, assets, shares, strategy, risk_tier, block_ts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(e.ChainID),
			e.TxHash,
			int64(e.LogIndex),
			int64(e.BlockNumber),
			e.BlockHash,
			e.Contract,
			e.Kind,
			e.Vault,
			nullable(e.Sender),
			nullable(e.Owner),
			nullable(e.Receiver),
			nullable(e.Assets),
			nullable(e.Shares),
			nullable(e.Strategy),
			int16(e.RiskTier),
			int64(e.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO vault_window_metrics (
				chain_id, vault_address, window_size_seconds, window_start_ts, window_end_ts,
				deposit_count, withdraw_count, deposited, withdrawn, net_flow,
				shares_minted, shares_burned, total_assets, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (chain_id, vault_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				deposited = EXCLUDED.deposited,
				withdrawn = EXCLUDED.withdrawn,
				net_flow = EXCLUDED.net_flow,
				shares_minted = EXCLUDED.shares_minted,
				shares_burned = EXCLUDED.shares_burned,
				total_assets = EXCLUDED.total_assets,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.VaultAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.Deposited,
			m.Withdrawn,
			m.NetFlow,
			m.SharesMinted,
			m.SharesBurned,
			m.TotalAssets,
			m.TVLMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
