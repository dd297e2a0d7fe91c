package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/api"
	"praxos/internal/cache"
	"praxos/internal/config"
	"praxos/internal/metadata"
	"praxos/internal/storage/postgres"
	"praxos/internal/vault"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the vault and strategy HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":5001", "listen address")
	cmd.Flags().String("cache", config.CacheMemory, "vault listing cache (memory, redis, none)")
	cmd.Flags().Duration("cache-ttl", cache.DefaultTTL, "vault listing cache TTL")
	cmd.Flags().String("redis-addr", "127.0.0.1:6379", "Redis address")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for vault metadata, in-memory when empty")
	cmd.Flags().Int("concurrency", vault.DefaultConcurrency, "parallel vault reads")
	cmd.Flags().Int("max-vaults", vault.DefaultMaxVaults, "maximum vaults listed")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := commandContext(0)
	defer cancel()

	client, network, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	registry, err := loadRegistry(cfg.ContractsPath, true, logger)
	if err != nil {
		return err
	}
	reader := vault.NewReader(client, registry, vault.Options{Concurrency: cfg.Concurrency, MaxVaults: cfg.MaxVaults}, logger)

	listingCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	var store metadata.Store = metadata.NewMemoryStore()
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		store = pg
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(api.Options{Network: network, CacheTTL: cfg.CacheTTL}, reader, store, listingCache, logger)

	logger.Info("serve start",
		zap.String("addr", cfg.Addr),
		zap.String("network", network.Name),
		zap.String("cache", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("deployment", registry.Data() != nil),
	)
	return server.Run(ctx, cfg.Addr)
}

// openCache builds the configured listing cache. A nil cache disables caching.
func openCache(ctx context.Context, cfg config.ServeConfig) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheNone, "":
		return nil, func() {}, nil
	case config.CacheMemory:
		m, err := cache.NewMemory(cache.MemoryConfig{})
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	case config.CacheRedis:
		pool := cache.NewRedisPool(cache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		r := cache.NewRedis(pool, cfg.RedisPrefix)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
