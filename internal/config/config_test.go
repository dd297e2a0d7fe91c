package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadWalletHonoursBareEnvNames(t *testing.T) {
	inTempDir(t)
	t.Setenv("PRIVATE_KEY", "0xabc")
	t.Setenv("WALLET_ADDRESS", "0x00000000000000000000000000000000000000A1")
	t.Setenv("MOCK_USDC_ADDRESS", "0x00000000000000000000000000000000000000D1")
	t.Setenv("RAYLS_RPC_URL", "https://rpc.example")

	cfg, err := LoadWatchedWallet("", nil)
	if err != nil {
		t.Fatalf("LoadWatchedWallet: %v", err)
	}
	if cfg.PrivateKey != "0xabc" || cfg.WalletAddress != "0x00000000000000000000000000000000000000A1" {
		t.Fatalf("wallet env mismatch: %+v", cfg)
	}
	if cfg.USDCAddress != "0x00000000000000000000000000000000000000D1" || cfg.RPCURL != "https://rpc.example" {
		t.Fatalf("usdc/rpc env mismatch: %+v", cfg)
	}
	if cfg.Network != "rayls_devnet" || cfg.PollInterval != 2*time.Second || cfg.LogLevel != "info" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestPrefixedEnvWinsOverBareName(t *testing.T) {
	inTempDir(t)
	t.Setenv("PRIVATE_KEY", "0xbare")
	t.Setenv("PRAXOS_PRIVATE_KEY", "0xprefixed")

	cfg, err := LoadWallet("", nil)
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	if cfg.PrivateKey != "0xprefixed" {
		t.Fatalf("expected prefixed key, got %q", cfg.PrivateKey)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("PRAXOS_RPC", "https://env.example")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("from", 0, "")
	if err := flags.Parse([]string{"--rpc=https://flag.example", "--from=42"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := LoadIndex("", flags)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if cfg.RPCURL != "https://flag.example" || cfg.FromBlock != 42 {
		t.Fatalf("flag override mismatch: %+v", cfg)
	}
	if cfg.BatchSize != 2000 || !cfg.CheckpointEnabled || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("index defaults mismatch: %+v", cfg)
	}
}

func TestLoadDeployOutputsFromEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("PRAXOS_OUTPUT", "web/contracts_data.json, ,contracts_data.json")

	cfg, err := LoadDeploy("", nil)
	if err != nil {
		t.Fatalf("LoadDeploy: %v", err)
	}
	want := []string{"web/contracts_data.json", "contracts_data.json"}
	if !reflect.DeepEqual(cfg.Outputs, want) {
		t.Fatalf("outputs mismatch: %v", cfg.Outputs)
	}
	if cfg.Timeout != 10*time.Minute || cfg.EnvPath != ".env" {
		t.Fatalf("deploy defaults mismatch: %+v", cfg)
	}
}

func TestLoadServeFromConfigFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "praxos.yaml")
	body := "addr: \":8080\"\ncache: redis\ncache-ttl: 30s\nredis-db: 2\nnetwork: hardhat\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadServe(path, nil)
	if err != nil {
		t.Fatalf("LoadServe: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.CacheBackend != CacheRedis || cfg.CacheTTL != 30*time.Second {
		t.Fatalf("serve config mismatch: %+v", cfg)
	}
	if cfg.RedisDB != 2 || cfg.Network != "hardhat" || cfg.RedisPrefix != "praxos:" {
		t.Fatalf("serve config mismatch: %+v", cfg)
	}
}

func TestMissingConfigFileIsAnError(t *testing.T) {
	inTempDir(t)
	if _, err := LoadCommon("missing.yaml", nil); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := inTempDir(t)
	if err := LoadDotenv(filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("missing dotenv should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PRAXOS_DOTENV_PROBE=loaded\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PRAXOS_DOTENV_PROBE") })
	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("PRAXOS_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("dotenv not applied: %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("1700000000")
	if err != nil || got != 1700000000 {
		t.Fatalf("unix parse: %d %v", got, err)
	}
	got, err = ParseTimestamp("2024-01-01T00:00:00Z")
	if err != nil || got != 1704067200 {
		t.Fatalf("rfc3339 parse: %d %v", got, err)
	}
	got, err = ParseTimestamp("")
	if err != nil || got != 0 {
		t.Fatalf("empty parse: %d %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadAggregateParsesWindowAndRecompute(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/praxos")
	t.Setenv("PRAXOS_WINDOW", "15m")
	t.Setenv("PRAXOS_RECOMPUTE_FROM", "2024-01-01T00:00:00Z")

	cfg, err := LoadAggregate("", nil)
	if err != nil {
		t.Fatalf("LoadAggregate: %v", err)
	}
	if cfg.WindowSeconds() != 900 || cfg.RecomputeFrom != 1704067200 {
		t.Fatalf("window/recompute mismatch: %+v", cfg)
	}
	if cfg.PGDSN != "postgres://localhost/praxos" || cfg.BatchSize != 1000 {
		t.Fatalf("aggregate defaults mismatch: %+v", cfg)
	}

	t.Setenv("PRAXOS_WINDOW", "500ms")
	if _, err := LoadAggregate("", nil); err == nil {
		t.Fatalf("expected error for sub-second window")
	}
}

func TestSigningWalletIgnoresWalletAddressEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("WALLET_ADDRESS", "0x00000000000000000000000000000000000000A1")
	t.Setenv("PRIVATE_KEY", "0xabc")

	cfg, err := LoadWallet("", nil)
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	if cfg.WalletAddress != "" || cfg.PrivateKey != "0xabc" {
		t.Fatalf("signing wallet should only read the address from flags or config: %+v", cfg)
	}
}
