package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	NumCounters int64
	MaxCost     int64
}

// Memory is an in-process cache backed by ristretto.
type Memory struct {
	cache *ristretto.Cache
}

func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10_000
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 32 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	return raw, ok, nil
}

// Set stores value; the write becomes visible once ristretto drains its buffers.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	m.cache.Wait()
	return nil
}

func (m *Memory) Close() {
	m.cache.Close()
}
