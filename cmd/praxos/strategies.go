package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"praxos/internal/config"
	"praxos/internal/strategy"
)

// demoTokens are the three mock RWAs the deploy command creates.
func demoTokens(now time.Time) []strategy.Token {
	const year = 365 * 24 * 60 * 60
	return []strategy.Token{
		{Address: "0x1111111111111111111111111111111111111111", AssetType: "corporate-bond", AnnualYield: 500, MaturityTimestamp: now.Unix() + year, RiskTier: 2},
		{Address: "0x2222222222222222222222222222222222222222", AssetType: "real-estate", AnnualYield: 700, MaturityTimestamp: now.Unix() + 5*year, RiskTier: 3},
		{Address: "0x3333333333333333333333333333333333333333", AssetType: "startup-fund", AnnualYield: 1500, RiskTier: 5},
	}
}

func newStrategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "Generate vault strategies from RWA tokens offline",
		Args:  cobra.NoArgs,
		RunE:  runStrategies,
	}
	cmd.Flags().String("tokens", "", "JSON file with an array of RWA tokens, defaults to the demo set")
	cmd.Flags().StringSlice("types", nil, "strategy template ids, all when empty")
	cmd.Flags().String("out", "", "also write the strategies to this file")
	cmd.Flags().Bool("recommend", false, "rank the strategies against investor preferences")
	cmd.Flags().Int("risk", strategy.DefaultRiskTolerance, "risk tolerance 1-5")
	cmd.Flags().Int("horizon", strategy.DefaultHorizonDays, "investment horizon in days")
	cmd.Flags().Int("target-yield", strategy.DefaultTargetYieldBps, "target yield in basis points")
	return cmd
}

func runStrategies(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCommon(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	now := time.Now()
	tokens := demoTokens(now)
	if path, _ := cmd.Flags().GetString("tokens"); path != "" {
		if tokens, err = readTokens(path); err != nil {
			return err
		}
	}

	types, _ := cmd.Flags().GetStringSlice("types")
	engine := strategy.NewEngine()
	strategies := engine.Generate(strategy.SimulateAll(tokens, now), types)
	logger.Info("strategies generated", zap.Int("tokens", len(tokens)), zap.Int("strategies", len(strategies)))

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		raw, err := json.MarshalIndent(strategies, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, raw, 0o644); err != nil {
			return fmt.Errorf("write strategies: %w", err)
		}
		logger.Info("strategies exported", zap.String("path", out))
	}

	if recommend, _ := cmd.Flags().GetBool("recommend"); !recommend {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{"strategies": strategies})
	}

	risk, _ := cmd.Flags().GetInt("risk")
	if risk < 1 || risk > 5 {
		return fmt.Errorf("risk must be between 1 and 5, got %d", risk)
	}
	horizon, _ := cmd.Flags().GetInt("horizon")
	target, _ := cmd.Flags().GetInt("target-yield")
	recs := strategy.Recommend(strategy.Preferences{
		RiskTolerance:  risk,
		HorizonDays:    horizon,
		TargetYieldBps: target,
	}, strategies)
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{"recommendations": recs})
}

func readTokens(path string) ([]strategy.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	var tokens []strategy.Token
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	for i, t := range tokens {
		if t.Address == "" || t.AssetType == "" {
			return nil, fmt.Errorf("token %d: address and asset_type are required", i)
		}
		if t.RiskTier < 1 || t.RiskTier > 5 {
			return nil, fmt.Errorf("token %d: risk_tier must be between 1 and 5", i)
		}
	}
	return tokens, nil
}
