package metadata

import (
	"context"
	"errors"
	"strings"
	"sync"

	"praxos/internal/model"
)

// ErrNotFound is returned when a vault has no stored metadata.
var ErrNotFound = errors.New("vault metadata not found")

// Store persists vault metadata keyed by lowercased vault address.
type Store interface {
	Get(ctx context.Context, vault string) (model.VaultMetadata, error)
	Put(ctx context.Context, meta model.VaultMetadata) error
	// GetBatch returns the entries that exist, keyed by the address as requested.
	GetBatch(ctx context.Context, vaults []string) (map[string]model.VaultMetadata, error)
}

// Key normalises a vault address for storage.
func Key(vault string) string {
	return strings.ToLower(strings.TrimSpace(vault))
}

// MemoryStore keeps metadata in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.VaultMetadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]model.VaultMetadata)}
}

func (s *MemoryStore) Get(ctx context.Context, vault string) (model.VaultMetadata, error) {
	s.mu.RLock()
	meta, ok := s.data[Key(vault)]
	s.mu.RUnlock()
	if !ok {
		return model.VaultMetadata{}, ErrNotFound
	}
	return meta, nil
}

func (s *MemoryStore) Put(ctx context.Context, meta model.VaultMetadata) error {
	key := Key(meta.VaultAddress)
	if key == "" {
		return errors.New("vault address required")
	}
	assets := make([]model.AssetEntry, len(meta.Assets))
	copy(assets, meta.Assets)
	meta.Assets = assets
	s.mu.Lock()
	s.data[key] = meta
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, vaults []string) (map[string]model.VaultMetadata, error) {
	out := make(map[string]model.VaultMetadata, len(vaults))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vault := range vaults {
		if meta, ok := s.data[Key(vault)]; ok {
			out[vault] = meta
		}
	}
	return out, nil
}
