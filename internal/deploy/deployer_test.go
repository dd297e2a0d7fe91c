package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"praxos/internal/contracts"
)

const vaultConfigComponents = `
  {"name": "baseAsset", "type": "address"},
  {"name": "name", "type": "string"},
  {"name": "symbol", "type": "string"},
  {"name": "strategy", "type": "string"},
  {"name": "riskTier", "type": "uint8"},
  {"name": "targetDuration", "type": "uint256"},
  {"name": "assets", "type": "address[]"},
  {"name": "weights", "type": "uint256[]"}`

var testArtifacts = map[string]string{
	"CompliantStrategyAdapter": `[{"inputs":[{"name":"token","type":"address"},{"name":"vault","type":"address"}],"name":"whitelistVault","outputs":[],"stateMutability":"nonpayable","type":"function"}]`,
	"SimplePriceOracle":        `[{"inputs":[{"name":"token","type":"address"},{"name":"price","type":"uint256"}],"name":"updatePrice","outputs":[],"stateMutability":"nonpayable","type":"function"}]`,
	"PraxosFactory":            `[{"inputs":[{"components":[` + vaultConfigComponents + `],"name":"config","type":"tuple"}],"name":"createVault","outputs":[{"name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"}]`,
	"PraxosFactoryCompliant": `[{"inputs":[{"name":"adapter","type":"address"},{"name":"oracle","type":"address"}],"stateMutability":"nonpayable","type":"constructor"},
		{"inputs":[{"components":[` + vaultConfigComponents + `,{"name":"dividendDistributors","type":"address[]"}],"name":"config","type":"tuple"}],"name":"createVault","outputs":[{"name":"","type":"address"}],"stateMutability":"nonpayable","type":"function"}]`,
	"MockUSDC":                  `[]`,
	"SimpleDividendDistributor": `[{"inputs":[{"name":"usdc","type":"address"}],"stateMutability":"nonpayable","type":"constructor"}]`,
	"MockERC3643":               `[{"inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"assetType","type":"string"},{"name":"maturity","type":"uint256"},{"name":"yieldBps","type":"uint256"},{"name":"riskTier","type":"uint8"},{"name":"supply","type":"uint256"}],"stateMutability":"nonpayable","type":"constructor"}]`,
	"PraxosVault":               `[]`,
	"PraxosVaultCompliant":      `[{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},{"inputs":[{"name":"module","type":"address"}],"name":"setRewardsModule","outputs":[],"stateMutability":"nonpayable","type":"function"}]`,
	"RewardsModule":             `[{"inputs":[{"name":"usdc","type":"address"},{"name":"shares","type":"address"}],"stateMutability":"nonpayable","type":"constructor"}]`,
}

func newTestArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	list := make([]Artifact, 0, len(testArtifacts))
	for name, raw := range testArtifacts {
		list = append(list, Artifact{ContractName: name, ABI: json.RawMessage(raw), Bytecode: "0x6080"})
	}
	return NewArtifacts(list...)
}

type fakeSender struct {
	from      common.Address
	next      int64
	deployed  []int
	calls     []string
	failCalls map[string]error
}

func (f *fakeSender) From() common.Address { return f.from }

func (f *fakeSender) nextAddress() common.Address {
	f.next++
	return common.BigToAddress(big.NewInt(0x1000 + f.next))
}

func (f *fakeSender) Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...interface{}) (common.Address, *types.Receipt, error) {
	coerced, err := contracts.CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return common.Address{}, nil, err
	}
	if _, err := parsed.Pack("", coerced...); err != nil {
		return common.Address{}, nil, err
	}
	f.deployed = append(f.deployed, len(args))
	return f.nextAddress(), &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeSender) Transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error) {
	if err := f.failCalls[method]; err != nil {
		return nil, err
	}
	coerced, err := contracts.CoerceArgs(parsed.Methods[method].Inputs, args)
	if err != nil {
		return nil, err
	}
	if _, err := parsed.Pack(method, coerced...); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeSender) CreateVault(ctx context.Context, factory common.Address, factoryABI abi.ABI, config map[string]interface{}) (common.Address, *types.Receipt, error) {
	if _, err := f.Transact(ctx, factory, factoryABI, "createVault", config); err != nil {
		return common.Address{}, nil, err
	}
	return f.nextAddress(), &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type ownerCaller struct {
	owner common.Address
}

func (c ownerCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(testArtifacts["PraxosVaultCompliant"]))
	if err != nil {
		return nil, err
	}
	return parsed.Methods["owner"].Outputs.Pack(c.owner)
}

func countCalls(calls []string, method string) int {
	n := 0
	for _, c := range calls {
		if c == method {
			n++
		}
	}
	return n
}

func TestDeployerRun(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PRIVATE_KEY=abc\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg := Config{
		NetworkName: "rayls_devnet",
		ChainID:     123123,
		OutputPaths: []string{filepath.Join(dir, "frontend", "contracts_data.json"), filepath.Join(dir, "contracts_data.json")},
		HistoryPath: filepath.Join(dir, "history", "deployments.jsonl"),
		EnvPath:     envPath,
	}
	sender := &fakeSender{from: common.HexToAddress("0xdead")}
	deployer := NewDeployer(cfg, sender, ownerCaller{owner: sender.from}, newTestArtifacts(t), nil)
	deployer.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	data, err := deployer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(data.Contracts) != 12 {
		t.Fatalf("expected 12 contracts, got %d", len(data.Contracts))
	}
	if data.DeploymentID != "1700000000000" || data.DeploymentType != DeploymentType {
		t.Fatalf("record header mismatch: %+v", data)
	}
	demo := data.Contracts[contracts.NameDemoVault]
	if demo.Name != "Balanced Diversified Vault" || !strings.HasPrefix(demo.ExplorerURL, contracts.DefaultExplorerURL+"/address/") {
		t.Fatalf("demo vault mismatch: %+v", demo)
	}
	if got := data.Contracts[contracts.NameDemoVaultComp].Name; got != "Compliant Balanced Diversified Vault" {
		t.Fatalf("compliant vault name mismatch: %s", got)
	}
	if countCalls(sender.calls, "updatePrice") != 3 || countCalls(sender.calls, "whitelistVault") != 3 {
		t.Fatalf("unexpected calls: %v", sender.calls)
	}
	if countCalls(sender.calls, "setRewardsModule") != 1 {
		t.Fatalf("rewards module should be set when deployer owns the vault: %v", sender.calls)
	}

	for _, path := range cfg.OutputPaths {
		reg, err := contracts.Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", path, err)
		}
		if _, ok := reg.FactoryAddress(); !ok {
			t.Fatalf("factory missing in %s", path)
		}
	}

	history, err := os.ReadFile(cfg.HistoryPath)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if strings.Count(string(history), "\n") != 1 {
		t.Fatalf("expected one history line")
	}

	env, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if !strings.HasPrefix(string(env), "PRIVATE_KEY=abc\n") || !strings.Contains(string(env), "MOCK_USDC_ADDRESS="+data.Contracts[contracts.NameMockUSDC].Address) {
		t.Fatalf("env not updated:\n%s", env)
	}
}

func TestDeployerOptionalStepsFailSoftly(t *testing.T) {
	sender := &fakeSender{
		from:      common.HexToAddress("0xdead"),
		failCalls: map[string]error{"whitelistVault": errors.New("not owner")},
	}
	factoryOwner := common.HexToAddress("0xbeef")
	deployer := NewDeployer(Config{ChainID: 1337}, sender, ownerCaller{owner: factoryOwner}, newTestArtifacts(t), nil)

	data, err := deployer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := data.Contracts["RewardsModule"]; !ok {
		t.Fatalf("rewards module should still deploy")
	}
	if countCalls(sender.calls, "setRewardsModule") != 0 {
		t.Fatalf("rewards module must not be set when deployer is not the owner")
	}
}

func TestDeployerMissingArtifact(t *testing.T) {
	sender := &fakeSender{from: common.HexToAddress("0xdead")}
	deployer := NewDeployer(Config{}, sender, ownerCaller{}, NewArtifacts(), nil)
	if _, err := deployer.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "CompliantStrategyAdapter") {
		t.Fatalf("expected missing artifact error, got %v", err)
	}
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "contracts", "mocks", "MockUSDC.sol")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	artifact := fmt.Sprintf(`{"contractName":"MockUSDC","abi":%s,"bytecode":"0x6080"}`, testArtifacts["SimpleDividendDistributor"])
	if err := os.WriteFile(filepath.Join(nested, "MockUSDC.json"), []byte(artifact), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "MockUSDC.dbg.json"), []byte(`{"buildInfo":"x"}`), 0o644); err != nil {
		t.Fatalf("write dbg: %v", err)
	}

	artifacts, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := artifacts.Get("MockUSDC")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	code, err := got.Code()
	if err != nil || len(code) != 2 {
		t.Fatalf("code mismatch: %x %v", code, err)
	}
	parsed, err := got.Parsed()
	if err != nil || len(parsed.Constructor.Inputs) != 1 {
		t.Fatalf("abi mismatch: %v", err)
	}
}
