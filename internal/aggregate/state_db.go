package aggregate

import (
	"context"
	"fmt"

	"praxos/internal/storage/postgres"
)

// DBStateStore keeps watermarks in the indexer_state table under "<prefix>:<window>".
type DBStateStore struct {
	Store  *postgres.Store
	Prefix string
}

func (s *DBStateStore) name(windowSeconds uint64) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "vault-aggregator"
	}
	return fmt.Sprintf("%s:%d", prefix, windowSeconds)
}

func (s *DBStateStore) Load(ctx context.Context, windowSeconds uint64) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.name(windowSeconds))
}

func (s *DBStateStore) Save(ctx context.Context, windowSeconds, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.name(windowSeconds), ts)
}
