package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable the CLI reads.
const EnvPrefix = "PRAXOS"

// Common holds settings shared by every command.
type Common struct {
	Network       string
	RPCURL        string
	ContractsPath string
	LogLevel      string
	LogFile       string
	Timeout       time.Duration
}

// LoadDotenv loads path into the process environment. A missing file is not an error and
// variables already set win.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "rayls_devnet")
	v.SetDefault("contracts", "./contracts_data.json")
	v.SetDefault("log-level", "info")
	v.SetDefault("timeout", 2*time.Minute)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.BindEnv("rpc", EnvPrefix+"_RPC", "RAYLS_RPC_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

// bindEnvAliases lets key also be read from unprefixed variable names.
func bindEnvAliases(v *viper.Viper, key string, names ...string) error {
	input := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))}, names...)
	if err := v.BindEnv(input...); err != nil {
		return fmt.Errorf("bind env %s: %w", key, err)
	}
	return nil
}

func loadCommon(v *viper.Viper) Common {
	return Common{
		Network:       v.GetString("network"),
		RPCURL:        v.GetString("rpc"),
		ContractsPath: v.GetString("contracts"),
		LogLevel:      v.GetString("log-level"),
		LogFile:       v.GetString("log-file"),
		Timeout:       v.GetDuration("timeout"),
	}
}

// LoadCommon reads only the shared settings.
func LoadCommon(cfgFile string, flags *pflag.FlagSet) (Common, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return Common{}, err
	}
	return loadCommon(v), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
