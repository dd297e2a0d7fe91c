package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/deploy"
	"praxos/internal/tx"
	"praxos/internal/vault"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the full vault system from Hardhat artifacts",
		RunE:  runDeploy,
	}
	cmd.Flags().String("artifacts", "./artifacts", "Hardhat artifacts directory")
	cmd.Flags().StringSlice("output", []string{"./frontend/contracts_data.json", "./contracts_data.json"}, "contracts_data.json output paths")
	cmd.Flags().String("history", "./deployments/history.jsonl", "deployment history log")
	cmd.Flags().String("env-out", ".env", "env file to upsert contract addresses into")
	cmd.Flags().String("private-key", "", "deployer key (env PRIVATE_KEY)")
	cmd.Flags().Duration("poll-interval", 0, "receipt polling interval")
	return cmd
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDeploy(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	artifacts, err := deploy.LoadArtifacts(cfg.ArtifactsDir)
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

	reader := vault.NewReader(client, nil, vault.Options{}, logger)
	signer, err := tx.NewTransactor(client, reader, cfg.PrivateKey, tx.Config{
		ChainID:      network.ChainID,
		PollInterval: cfg.PollInterval,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("deploy start",
		zap.String("network", network.Name),
		zap.Uint64("chain_id", network.ChainID),
		zap.String("deployer", signer.From().Hex()),
		zap.String("artifacts", cfg.ArtifactsDir),
		zap.Strings("outputs", cfg.Outputs),
	)

	deployer := deploy.NewDeployer(deploy.Config{
		NetworkName: network.Name,
		ChainID:     network.ChainID,
		ExplorerURL: network.ExplorerURL,
		OutputPaths: cfg.Outputs,
		HistoryPath: cfg.HistoryPath,
		EnvPath:     cfg.EnvPath,
	}, signer, client, artifacts, logger)

	data, err := deployer.Run(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(data.Contracts))
	for name := range data.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deployment %s on %s\n", data.DeploymentID, data.NetworkName)
	for _, name := range names {
		c := data.Contracts[name]
		fmt.Fprintf(out, "  %-28s %s\n", name, c.Address)
	}
	return nil
}
