package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"praxos/internal/chain"
	"praxos/internal/config"
	"praxos/internal/contracts"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "praxos",
		Short:        "Praxos vault toolkit for the Rayls network",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotenv(envFile)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("env-file", ".env", "dotenv file loaded before reading configuration")
	flags.String("network", "rayls_devnet", "network key (rayls_devnet, hardhat)")
	flags.String("rpc", "", "RPC URL, defaults to the network's public endpoint")
	flags.String("contracts", "./contracts_data.json", "deployment record path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file, rotated")
	flags.Duration("timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		newBalanceCmd(),
		newFaucetCmd(),
		newDeployCmd(),
		newVaultsCmd(),
		newApproveCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newStrategiesCmd(),
		newIndexCmd(),
		newAggregateCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if file == "" {
		return cfg.Build()
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stderr), rotating),
		cfg.Level,
	)
	return zap.New(core, zap.AddCaller()), nil
}

// commandContext is cancelled on SIGINT/SIGTERM or after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveNetwork returns the selected network with the effective RPC URL.
func resolveNetwork(cfg config.Common) (chain.Network, error) {
	network, err := chain.LookupNetwork(cfg.Network)
	if err != nil {
		return chain.Network{}, err
	}
	if cfg.RPCURL != "" {
		network.RPCURL = cfg.RPCURL
	}
	if network.RPCURL == "" {
		return chain.Network{}, fmt.Errorf("rpc url is required")
	}
	return network, nil
}

func dial(ctx context.Context, cfg config.Common) (*chain.Client, chain.Network, error) {
	network, err := resolveNetwork(cfg)
	if err != nil {
		return nil, chain.Network{}, err
	}
	client, err := chain.NewClient(ctx, network.RPCURL)
	if err != nil {
		return nil, chain.Network{}, fmt.Errorf("connect rpc: %w", err)
	}
	return client, network, nil
}

// loadRegistry reads the deployment record. When optional is set a missing deployment
// yields an empty registry instead of an error.
func loadRegistry(path string, optional bool, logger *zap.Logger) (*contracts.Registry, error) {
	registry, err := contracts.Load(path)
	if err == nil {
		return registry, nil
	}
	if optional && errors.Is(err, contracts.ErrNoDeployment) {
		logger.Warn("no deployment record", zap.String("path", path))
		return contracts.NewRegistry(nil), nil
	}
	return nil, err
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
