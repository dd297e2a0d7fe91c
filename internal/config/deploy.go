package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DeployConfig holds configuration for the deploy command.
type DeployConfig struct {
	Common
	PrivateKey   string
	ArtifactsDir string
	Outputs      []string
	HistoryPath  string
	EnvPath      string
	PollInterval time.Duration
}

// LoadDeploy merges config file, environment variables, and flags into DeployConfig.
func LoadDeploy(cfgFile string, flags *pflag.FlagSet) (DeployConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"artifacts":     "./artifacts",
		"output":        []string{"./frontend/contracts_data.json", "./contracts_data.json"},
		"history":       "./deployments/history.jsonl",
		"env-out":       ".env",
		"poll-interval": 2 * time.Second,
		"timeout":       10 * time.Minute,
	})
	if err != nil {
		return DeployConfig{}, err
	}
	if err := bindEnvAliases(v, "private-key", "PRIVATE_KEY"); err != nil {
		return DeployConfig{}, err
	}

	return DeployConfig{
		Common:       loadCommon(v),
		PrivateKey:   v.GetString("private-key"),
		ArtifactsDir: v.GetString("artifacts"),
		Outputs:      getStringSlice(v, "output"),
		HistoryPath:  v.GetString("history"),
		EnvPath:      v.GetString("env-out"),
		PollInterval: v.GetDuration("poll-interval"),
	}, nil
}
