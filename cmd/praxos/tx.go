package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/chain"
	"praxos/internal/config"
	"praxos/internal/tx"
	"praxos/internal/vault"
)

type signerEnv struct {
	cfg     config.WalletConfig
	network chain.Network
	reader  *vault.Reader
	signer  *tx.Transactor
	logger  *zap.Logger
}

type signerRun func(ctx context.Context, cmd *cobra.Command, args []string, env signerEnv) error

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "signer key (env PRIVATE_KEY)")
	cmd.Flags().Duration("poll-interval", 0, "receipt polling interval")
}

// withSigner loads configuration, dials the chain and builds a transactor before calling run.
func withSigner(run signerRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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
		reader := vault.NewReader(client, registry, vault.Options{}, logger)
		signer, err := tx.NewTransactor(client, reader, cfg.PrivateKey, tx.Config{
			ChainID:      network.ChainID,
			PollInterval: cfg.PollInterval,
			AutoApprove:  cfg.AutoApprove,
		}, logger)
		if err != nil {
			return err
		}

		return run(ctx, cmd, args, signerEnv{cfg: cfg, network: network, reader: reader, signer: signer, logger: logger})
	}
}

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <vault> <amount>",
		Short: "Approve a vault to spend its base asset",
		Args:  cobra.ExactArgs(2),
		RunE:  withSigner(runApprove),
	}
	addSignerFlags(cmd)
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit <vault> <amount>",
		Short: "Deposit base asset into a vault",
		Args:  cobra.ExactArgs(2),
		RunE:  withSigner(runDeposit),
	}
	addSignerFlags(cmd)
	cmd.Flags().String("receiver", "", "share receiver, defaults to the signer")
	cmd.Flags().Bool("auto-approve", false, "approve the deposit amount when the allowance is short")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <vault> <amount>",
		Short: "Withdraw base asset from a vault",
		Args:  cobra.ExactArgs(2),
		RunE:  withSigner(runWithdraw),
	}
	addSignerFlags(cmd)
	cmd.Flags().String("receiver", "", "asset receiver, defaults to the signer")
	cmd.Flags().String("owner", "", "share owner, defaults to the signer")
	return cmd
}

type vaultTarget struct {
	vault    common.Address
	asset    common.Address
	decimals uint8
	amount   *big.Int
}

// resolveVaultAmount parses amount in the decimals of the vault's base asset.
func resolveVaultAmount(ctx context.Context, reader *vault.Reader, rawVault, rawAmount string) (vaultTarget, error) {
	addr, err := parseAddress("vault", rawVault)
	if err != nil {
		return vaultTarget{}, err
	}
	asset, err := reader.BaseAsset(ctx, addr)
	if err != nil {
		return vaultTarget{}, fmt.Errorf("read vault asset: %w", err)
	}
	decimals := reader.Decimals(ctx, asset)
	amount, err := tx.ParseAmount(rawAmount, decimals)
	if err != nil {
		return vaultTarget{}, err
	}
	return vaultTarget{vault: addr, asset: asset, decimals: decimals, amount: amount}, nil
}

func optionalAddress(cmd *cobra.Command, flag string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(flag)
	if raw == "" {
		return common.Address{}, nil
	}
	return parseAddress(flag, raw)
}

func printReceipt(cmd *cobra.Command, env signerEnv, action string, target vaultTarget, receipt *types.Receipt) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s on %s\n", action, tx.FormatAmount(target.amount, target.decimals), target.vault.Hex())
	fmt.Fprintf(out, "Transaction: %s (block %s, gas %d)\n",
		env.network.TxURL(receipt.TxHash.Hex()), receipt.BlockNumber, receipt.GasUsed)
}

func runApprove(ctx context.Context, cmd *cobra.Command, args []string, env signerEnv) error {
	target, err := resolveVaultAmount(ctx, env.reader, args[0], args[1])
	if err != nil {
		return err
	}
	receipt, err := env.signer.Approve(ctx, target.asset, target.vault, target.amount)
	if err != nil {
		return err
	}
	printReceipt(cmd, env, "Approved", target, receipt)
	return nil
}

func runDeposit(ctx context.Context, cmd *cobra.Command, args []string, env signerEnv) error {
	target, err := resolveVaultAmount(ctx, env.reader, args[0], args[1])
	if err != nil {
		return err
	}
	receiver, err := optionalAddress(cmd, "receiver")
	if err != nil {
		return err
	}

	env.logger.Info("deposit",
		zap.String("vault", target.vault.Hex()),
		zap.String("amount", target.amount.String()),
		zap.Bool("auto_approve", env.cfg.AutoApprove),
	)
	receipt, err := env.signer.Deposit(ctx, target.vault, target.amount, receiver)
	if err != nil {
		return err
	}
	printReceipt(cmd, env, "Deposited", target, receipt)
	return nil
}

func runWithdraw(ctx context.Context, cmd *cobra.Command, args []string, env signerEnv) error {
	target, err := resolveVaultAmount(ctx, env.reader, args[0], args[1])
	if err != nil {
		return err
	}
	receiver, err := optionalAddress(cmd, "receiver")
	if err != nil {
		return err
	}
	owner, err := optionalAddress(cmd, "owner")
	if err != nil {
		return err
	}

	env.logger.Info("withdraw",
		zap.String("vault", target.vault.Hex()),
		zap.String("amount", target.amount.String()),
	)
	receipt, err := env.signer.Withdraw(ctx, target.vault, target.amount, receiver, owner)
	if err != nil {
		return err
	}
	printReceipt(cmd, env, "Withdrew", target, receipt)
	return nil
}
