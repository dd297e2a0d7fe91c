package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WalletConfig holds settings for commands that read or sign as one account.
type WalletConfig struct {
	Common
	PrivateKey    string
	WalletAddress string
	USDCAddress   string
	AutoApprove   bool
	PollInterval  time.Duration
}

// LoadWallet merges config file, environment variables, and flags into WalletConfig for
// commands that sign. PRIVATE_KEY and MOCK_USDC_ADDRESS are honoured without the prefix.
func LoadWallet(cfgFile string, flags *pflag.FlagSet) (WalletConfig, error) {
	return loadWallet(cfgFile, flags, false)
}

// LoadWatchedWallet is LoadWallet for read-only commands; the address also falls back to
// WALLET_ADDRESS.
func LoadWatchedWallet(cfgFile string, flags *pflag.FlagSet) (WalletConfig, error) {
	return loadWallet(cfgFile, flags, true)
}

func loadWallet(cfgFile string, flags *pflag.FlagSet, watched bool) (WalletConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"auto-approve":  false,
		"poll-interval": 2 * time.Second,
	})
	if err != nil {
		return WalletConfig{}, err
	}
	if err := bindEnvAliases(v, "private-key", "PRIVATE_KEY"); err != nil {
		return WalletConfig{}, err
	}
	if err := bindEnvAliases(v, "usdc", "MOCK_USDC_ADDRESS"); err != nil {
		return WalletConfig{}, err
	}
	if watched {
		if err := bindEnvAliases(v, "address", "WALLET_ADDRESS"); err != nil {
			return WalletConfig{}, err
		}
	}

	return WalletConfig{
		Common:        loadCommon(v),
		PrivateKey:    v.GetString("private-key"),
		WalletAddress: v.GetString("address"),
		USDCAddress:   v.GetString("usdc"),
		AutoApprove:   v.GetBool("auto-approve"),
		PollInterval:  v.GetDuration("poll-interval"),
	}, nil
}
