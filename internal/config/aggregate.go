package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for vault flow aggregation.
type AggregateConfig struct {
	Common
	Input         string
	Window        time.Duration
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
}

// WindowSeconds is the aggregation window in whole seconds.
func (c AggregateConfig) WindowSeconds() uint64 {
	return uint64(c.Window / time.Second)
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":         "./data/vault_events.jsonl",
		"batch-size": 1000,
		"window":     "1h",
	})
	if err != nil {
		return AggregateConfig{}, err
	}
	if err := bindEnvAliases(v, "pg-dsn", "DATABASE_URL"); err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s, got %s", window)
	}
	recompute, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	return AggregateConfig{
		Common:        loadCommon(v),
		Input:         v.GetString("in"),
		Window:        window,
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: recompute,
	}, nil
}

// ParseTimestamp accepts unix seconds or RFC3339. Empty input is zero.
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if ts, err := strconv.ParseUint(input, 10, 64); err == nil {
		return ts, nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is neither unix seconds nor RFC3339", input)
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp %q is before 1970", input)
	}
	return uint64(tm.Unix()), nil
}
