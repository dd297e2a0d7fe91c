package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/tx"
	"praxos/internal/vault"
)

func newFaucetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet",
		Short: "Mint mock USDC to an address",
		RunE:  runFaucet,
	}
	cmd.Flags().String("address", "", "recipient, defaults to the signer")
	cmd.Flags().String("amount", "1000", "amount of USDC to mint")
	cmd.Flags().String("usdc", "", "mock USDC address (env MOCK_USDC_ADDRESS)")
	cmd.Flags().String("private-key", "", "signer key (env PRIVATE_KEY)")
	return cmd
}

func runFaucet(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWallet(cfgFile, cmd.Flags())
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

	client, network, err := dial(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer client.Close()

	registry, err := loadRegistry(cfg.ContractsPath, true, logger)
	if err != nil {
		return err
	}
	usdc, err := resolveUSDC(cfg, registry.USDCAddress)
	if err != nil {
		return err
	}

	reader := vault.NewReader(client, registry, vault.Options{}, logger)
	signer, err := tx.NewTransactor(client, reader, cfg.PrivateKey, tx.Config{
		ChainID:      network.ChainID,
		PollInterval: cfg.PollInterval,
	}, logger)
	if err != nil {
		return err
	}

	recipient, err := faucetRecipient(cfg, signer.From())
	if err != nil {
		return err
	}

	decimals := reader.Decimals(ctx, usdc)
	rawAmount, _ := cmd.Flags().GetString("amount")
	amount, err := tx.ParseAmount(rawAmount, decimals)
	if err != nil {
		return err
	}

	before, err := reader.TokenBalance(ctx, usdc, recipient)
	if err != nil {
		return fmt.Errorf("balance before: %w", err)
	}

	logger.Info("minting mock usdc",
		zap.String("usdc", usdc.Hex()),
		zap.String("to", recipient.Hex()),
		zap.String("amount", amount.String()),
	)
	receipt, err := signer.Mint(ctx, usdc, recipient, amount)
	if err != nil {
		return err
	}

	after, err := reader.TokenBalance(ctx, usdc, recipient)
	if err != nil {
		return fmt.Errorf("balance after: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Minted %s USDC to %s\n", tx.FormatAmount(amount, decimals), recipient.Hex())
	fmt.Fprintf(out, "Transaction: %s\n", network.TxURL(receipt.TxHash.Hex()))
	fmt.Fprintf(out, "Balance: %s -> %s USDC\n", tx.FormatAmount(before, decimals), tx.FormatAmount(after, decimals))
	return nil
}

// faucetRecipient is the --address value, or the signer when it is unset.
func faucetRecipient(cfg config.WalletConfig, signer common.Address) (common.Address, error) {
	if cfg.WalletAddress == "" {
		return signer, nil
	}
	return parseAddress("recipient", cfg.WalletAddress)
}

// resolveUSDC prefers an explicit address over the deployment record.
func resolveUSDC(cfg config.WalletConfig, fromRegistry func() (common.Address, bool)) (common.Address, error) {
	if cfg.USDCAddress != "" {
		return parseAddress("usdc", cfg.USDCAddress)
	}
	if addr, ok := fromRegistry(); ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("MOCK_USDC_ADDRESS not set and no MockUSDC in the deployment record")
}
