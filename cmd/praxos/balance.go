package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/vault"
)

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the native gas token balance of a wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBalance,
	}
	cmd.Flags().String("address", "", "wallet address (env WALLET_ADDRESS)")
	return cmd
}

func runBalance(cmd *cobra.Command, args []string) error {
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

	raw := cfg.WalletAddress
	if len(args) == 1 {
		raw = args[0]
	}
	if raw == "" {
		return fmt.Errorf("WALLET_ADDRESS is not set; pass an address or export WALLET_ADDRESS")
	}
	wallet, err := parseAddress("wallet", raw)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cfg.Timeout)
	defer cancel()

	client, network, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	balance, err := client.BalanceAt(ctx, wallet, nil)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	logger.Debug("balance fetched", zap.String("wallet", wallet.Hex()), zap.String("wei", balance.String()))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Network: %s (chain id %s)\n", network.Name, chainID)
	fmt.Fprintf(out, "Wallet:  %s\n", wallet.Hex())
	fmt.Fprintf(out, "Balance: %s %s (%s wei)\n",
		vault.FormatUnits(balance, network.NativeCurrency.Decimals), network.NativeCurrency.Symbol, balance)
	if link := network.AddressURL(wallet.Hex()); link != "" {
		fmt.Fprintf(out, "Explorer: %s\n", link)
	}
	return nil
}
