package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/contracts"
	"praxos/internal/indexer"
	"praxos/internal/storage"
	"praxos/internal/storage/postgres"
	"praxos/internal/vault"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index vault Deposit/Withdraw and factory VaultCreated events",
		RunE:  runIndex,
	}
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "contract addresses, defaults to the factories and known vaults")
	cmd.Flags().StringSlice("topic0", nil, "event names or topic0 hashes, defaults to every decoded event")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/vault_events.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("pg-dsn", "", "also write events to Postgres")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(0)
	defer cancel()

	chainClient, network, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	if len(addresses) == 0 {
		registry, err := loadRegistry(cfg.ContractsPath, false, logger)
		if err != nil {
			return fmt.Errorf("no --address given: %w", err)
		}
		addresses, err = defaultIndexAddresses(ctx, registry, vault.NewReader(chainClient, registry, vault.Options{MaxVaults: 1000}, logger))
		if err != nil {
			return err
		}
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	decoder, err := indexer.NewDecoder()
	if err != nil {
		return err
	}
	topic0, err := decoder.EventTopics(cfg.Topic0)
	if err != nil {
		return err
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, decoder, sinks, logger)

	logger.Info("indexer start",
		zap.String("network", network.Name),
		zap.String("rpc", network.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}
	stats := runner.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d events in %d batches, last block %d\n", stats.Events, stats.Batches, stats.LastBlock)
	return nil
}

// defaultIndexAddresses watches both factories plus every vault they or the record know.
func defaultIndexAddresses(ctx context.Context, registry *contracts.Registry, reader *vault.Reader) ([]common.Address, error) {
	var out []common.Address
	for _, name := range []string{contracts.NameFactory, contracts.NameFactoryCompliant} {
		if addr, ok := registry.Address(name); ok {
			out = append(out, addr)
		}
	}
	vaults, err := reader.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	return append(out, vaults...), nil
}
