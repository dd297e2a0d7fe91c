package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/model"
	"praxos/internal/vault"
)

func newVaultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaults",
		Short: "Read vault state",
	}
	cmd.PersistentFlags().Int("concurrency", vault.DefaultConcurrency, "parallel vault reads")
	cmd.PersistentFlags().Int("max-vaults", vault.DefaultMaxVaults, "maximum vaults listed")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List vaults from the factory and the deployment record",
			Args:  cobra.NoArgs,
			RunE:  withReader(runVaultsList),
		},
		&cobra.Command{
			Use:   "info <vault>",
			Short: "Show one vault",
			Args:  cobra.ExactArgs(1),
			RunE:  withReader(runVaultInfo),
		},
		&cobra.Command{
			Use:   "balance <vault> [user]",
			Short: "Show a user's share balance, defaulting to WALLET_ADDRESS",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  withReader(runVaultBalance),
		},
		&cobra.Command{
			Use:   "allocations <vault>",
			Short: "Show a vault's target allocation",
			Args:  cobra.ExactArgs(1),
			RunE:  withReader(runVaultAllocations),
		},
	)
	return cmd
}

type readerRun func(ctx context.Context, cmd *cobra.Command, args []string, cfg config.WalletConfig, reader *vault.Reader) error

// withReader loads configuration and builds a vault reader before calling run.
func withReader(run readerRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadWatchedWallet(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := commandContext(cfg.Timeout)
		defer cancel()

		client, _, err := dial(ctx, cfg.Common)
		if err != nil {
			return err
		}
		defer client.Close()

		registry, err := loadRegistry(cfg.ContractsPath, true, logger)
		if err != nil {
			return err
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		maxVaults, _ := cmd.Flags().GetInt("max-vaults")
		reader := vault.NewReader(client, registry, vault.Options{Concurrency: concurrency, MaxVaults: maxVaults}, logger)

		logger.Debug("vault read", zap.String("command", cmd.Name()), zap.Strings("args", args))
		return run(ctx, cmd, args, cfg, reader)
	}
}

func runVaultsList(ctx context.Context, cmd *cobra.Command, _ []string, _ config.WalletConfig, reader *vault.Reader) error {
	infos, err := reader.List(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"vaults": infos,
		"views":  vault.ToViews(infos),
	})
}

func runVaultInfo(ctx context.Context, cmd *cobra.Command, args []string, _ config.WalletConfig, reader *vault.Reader) error {
	addr, err := parseAddress("vault", args[0])
	if err != nil {
		return err
	}
	info, err := reader.Info(ctx, addr)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"vault":                info,
		"totalAssetsFormatted": vault.TotalAssetsValue(info),
		"sharePrice":           vault.SharePrice(info),
	})
}

func runVaultBalance(ctx context.Context, cmd *cobra.Command, args []string, cfg config.WalletConfig, reader *vault.Reader) error {
	addr, err := parseAddress("vault", args[0])
	if err != nil {
		return err
	}
	rawUser := cfg.WalletAddress
	if len(args) == 2 {
		rawUser = args[1]
	}
	if rawUser == "" {
		return fmt.Errorf("user address required; pass it or export WALLET_ADDRESS")
	}
	user, err := parseAddress("user", rawUser)
	if err != nil {
		return err
	}

	shares, err := reader.Balance(ctx, addr, user)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]string{
		"vault":     addr.Hex(),
		"user":      user.Hex(),
		"shares":    shares.String(),
		"formatted": vault.FormatUnits(shares, reader.Decimals(ctx, addr)),
	})
}

func runVaultAllocations(ctx context.Context, cmd *cobra.Command, args []string, _ config.WalletConfig, reader *vault.Reader) error {
	addr, err := parseAddress("vault", args[0])
	if err != nil {
		return err
	}
	allocations, err := reader.Allocations(ctx, addr)
	if err != nil {
		return err
	}
	if allocations == nil {
		allocations = []model.Allocation{}
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"vault":       addr.Hex(),
		"allocations": allocations,
	})
}
