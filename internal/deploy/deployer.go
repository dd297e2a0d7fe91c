package deploy

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"praxos/internal/contracts"
	"praxos/internal/storage"
)

// DeploymentType tags records written by this deployer.
const DeploymentType = "PRAXOS_VAULT_SYSTEM"

const secondsPerDay = 24 * 60 * 60

// Sender submits deployments and contract calls from one account.
type Sender interface {
	From() common.Address
	Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...interface{}) (common.Address, *types.Receipt, error)
	Transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, error)
	CreateVault(ctx context.Context, factory common.Address, factoryABI abi.ABI, config map[string]interface{}) (common.Address, *types.Receipt, error)
}

// Params are the economic parameters of the demo system.
type Params struct {
	BondYield           uint64
	BondRiskTier        uint8
	RealEstateYield     uint64
	RealEstateRiskTier  uint8
	StartupYield        uint64
	StartupRiskTier     uint8
	VaultName           string
	VaultSymbol         string
	VaultStrategy       string
	VaultRiskTier       uint8
	VaultTargetDuration uint64
	VaultWeights        []uint64
}

// DefaultParams mirrors the reference demo deployment.
func DefaultParams() Params {
	return Params{
		BondYield:           500,
		BondRiskTier:        2,
		RealEstateYield:     700,
		RealEstateRiskTier:  3,
		StartupYield:        1500,
		StartupRiskTier:     5,
		VaultName:           "Balanced Diversified Vault",
		VaultSymbol:         "BAL-VAULT",
		VaultStrategy:       "balanced-diversified",
		VaultRiskTier:       3,
		VaultTargetDuration: 1095 * secondsPerDay,
		VaultWeights:        []uint64{4000, 4000, 2000},
	}
}

// Config controls where deployment output is written.
type Config struct {
	NetworkName string
	ChainID     uint64
	ExplorerURL string
	OutputPaths []string
	HistoryPath string
	EnvPath     string
	Params      Params
}

// Deployer runs the full system deployment.
type Deployer struct {
	cfg       Config
	sender    Sender
	caller    contracts.Caller
	artifacts *Artifacts
	logger    *zap.Logger
	now       func() time.Time
}

func NewDeployer(cfg Config, sender Sender, caller contracts.Caller, artifacts *Artifacts, logger *zap.Logger) *Deployer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = contracts.DefaultExplorerURL
	}
	if cfg.Params.VaultName == "" {
		cfg.Params = DefaultParams()
	}
	return &Deployer{
		cfg:       cfg,
		sender:    sender,
		caller:    caller,
		artifacts: artifacts,
		logger:    logger,
		now:       time.Now,
	}
}

type rwaToken struct {
	key      string
	name     string
	symbol   string
	kind     string
	maturity uint64
	yield    uint64
	tier     uint8
}

// Run deploys every contract in dependency order and records the result.
func (d *Deployer) Run(ctx context.Context) (*contracts.ContractsData, error) {
	if d.sender == nil {
		return nil, fmt.Errorf("sender is nil")
	}
	if d.artifacts == nil {
		return nil, fmt.Errorf("artifacts are nil")
	}
	p := d.cfg.Params
	if len(p.VaultWeights) != 3 {
		return nil, fmt.Errorf("vault weights must have 3 entries, got %d", len(p.VaultWeights))
	}

	started := d.now()
	data := &contracts.ContractsData{
		DeploymentID:   strconv.FormatInt(started.UnixMilli(), 10),
		DeployedBy:     d.sender.From().Hex(),
		NetworkName:    d.cfg.NetworkName,
		ChainID:        strconv.FormatUint(d.cfg.ChainID, 10),
		ExplorerURL:    d.cfg.ExplorerURL,
		DeploymentType: DeploymentType,
		Contracts:      make(map[string]contracts.ContractData),
		Configuration: contracts.DeploymentConfiguration{
			VaultStrategy:       p.VaultStrategy,
			VaultRiskTier:       p.VaultRiskTier,
			VaultTargetDuration: p.VaultTargetDuration,
			VaultWeights:        p.VaultWeights,
			BondYield:           p.BondYield,
			RealEstateYield:     p.RealEstateYield,
			StartupYield:        p.StartupYield,
		},
	}
	d.logger.Info("deployment started",
		zap.String("network", d.cfg.NetworkName),
		zap.Uint64("chain_id", d.cfg.ChainID),
		zap.String("deployer", d.sender.From().Hex()),
	)

	adapter, err := d.deploy(ctx, data, "CompliantStrategyAdapter", "CompliantStrategyAdapter", "CompliantStrategyAdapter")
	if err != nil {
		return nil, err
	}
	oracle, err := d.deploy(ctx, data, "SimplePriceOracle", "SimplePriceOracle", "SimplePriceOracle")
	if err != nil {
		return nil, err
	}
	factory, err := d.deploy(ctx, data, contracts.NameFactory, contracts.NameFactory, contracts.NameFactory)
	if err != nil {
		return nil, err
	}
	usdc, err := d.deploy(ctx, data, contracts.NameMockUSDC, contracts.NameMockUSDC, contracts.NameMockUSDC)
	if err != nil {
		return nil, err
	}
	distributor, err := d.deploy(ctx, data, "SimpleDividendDistributor", "SimpleDividendDistributor", "SimpleDividendDistributor", usdc)
	if err != nil {
		return nil, err
	}

	nowTs := uint64(started.Unix())
	tokens := []rwaToken{
		{"CorporateBondAlpha", "Corporate Bond Alpha", "BOND-ALPHA", "corporate-bond", nowTs + 365*secondsPerDay, p.BondYield, p.BondRiskTier},
		{"RealEstateFundBeta", "Real Estate Fund Beta", "RE-BETA", "real-estate", nowTs + 1825*secondsPerDay, p.RealEstateYield, p.RealEstateRiskTier},
		{"StartupFundGamma", "Startup Fund Gamma", "STARTUP-GAMMA", "startup-fund", 0, p.StartupYield, p.StartupRiskTier},
	}
	supply := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assets := make([]common.Address, 0, len(tokens))
	for _, token := range tokens {
		addr, err := d.deploy(ctx, data, token.key, token.name, "MockERC3643",
			token.name, token.symbol, token.kind, new(big.Int).SetUint64(token.maturity),
			new(big.Int).SetUint64(token.yield), token.tier, supply)
		if err != nil {
			return nil, err
		}
		assets = append(assets, addr)
	}

	oracleABI, err := d.abiFor("SimplePriceOracle")
	if err != nil {
		return nil, err
	}
	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	for _, asset := range assets {
		if _, err := d.sender.Transact(ctx, oracle, oracleABI, "updatePrice", asset, oneToken); err != nil {
			return nil, fmt.Errorf("set oracle price for %s: %w", asset.Hex(), err)
		}
	}
	d.logger.Info("oracle prices set", zap.Int("tokens", len(assets)))

	factoryCompliant, err := d.deploy(ctx, data, contracts.NameFactoryCompliant, contracts.NameFactoryCompliant, contracts.NameFactoryCompliant, adapter, oracle)
	if err != nil {
		return nil, err
	}

	weights := make([]*big.Int, 0, len(p.VaultWeights))
	for _, w := range p.VaultWeights {
		weights = append(weights, new(big.Int).SetUint64(w))
	}
	vaultConfig := map[string]interface{}{
		"baseAsset":      usdc,
		"name":           p.VaultName,
		"symbol":         p.VaultSymbol,
		"strategy":       p.VaultStrategy,
		"riskTier":       p.VaultRiskTier,
		"targetDuration": new(big.Int).SetUint64(p.VaultTargetDuration),
		"assets":         assets,
		"weights":        weights,
	}
	demoVault, err := d.createVault(ctx, data, factory, contracts.NameFactory, contracts.NameDemoVault, p.VaultName, contracts.NameVault, vaultConfig)
	if err != nil {
		return nil, err
	}

	compliantConfig := make(map[string]interface{}, len(vaultConfig)+1)
	for k, v := range vaultConfig {
		compliantConfig[k] = v
	}
	compliantConfig["name"] = "Compliant " + p.VaultName
	compliantConfig["symbol"] = "COMP-" + p.VaultSymbol
	compliantConfig["dividendDistributors"] = []common.Address{distributor, distributor, distributor}
	compliantVault, err := d.createVault(ctx, data, factoryCompliant, contracts.NameFactoryCompliant, contracts.NameDemoVaultComp, "Compliant "+p.VaultName, contracts.NameVaultCompliant, compliantConfig)
	if err != nil {
		return nil, err
	}

	d.whitelist(ctx, adapter, compliantVault, assets)

	rewards, err := d.deploy(ctx, data, "RewardsModule", "RewardsModule", "RewardsModule", usdc, compliantVault)
	if err != nil {
		return nil, err
	}
	d.attachRewards(ctx, compliantVault, factoryCompliant, rewards)

	data.DeployedAt = d.now().UTC().Format(time.RFC3339Nano)
	d.record(data)

	d.logger.Info("deployment complete",
		zap.String("factory", factory.Hex()),
		zap.String("demo_vault", demoVault.Hex()),
		zap.String("compliant_vault", compliantVault.Hex()),
	)
	return data, nil
}

// deploy deploys artifact under key and records it with a display name.
func (d *Deployer) deploy(ctx context.Context, data *contracts.ContractsData, key, name, artifactName string, args ...interface{}) (common.Address, error) {
	artifact, err := d.artifacts.Get(artifactName)
	if err != nil {
		return common.Address{}, err
	}
	parsed, err := artifact.Parsed()
	if err != nil {
		return common.Address{}, err
	}
	code, err := artifact.Code()
	if err != nil {
		return common.Address{}, err
	}

	addr, receipt, err := d.sender.Deploy(ctx, parsed, code, args...)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", name, err)
	}
	d.logger.Info("contract deployed",
		zap.String("contract", name),
		zap.String("address", addr.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.String("explorer", d.addressURL(addr)),
	)
	d.put(data, key, name, addr, artifact)
	return addr, nil
}

func (d *Deployer) createVault(ctx context.Context, data *contracts.ContractsData, factory common.Address, factoryArtifact, key, name, vaultArtifact string, config map[string]interface{}) (common.Address, error) {
	factoryABI, err := d.abiFor(factoryArtifact)
	if err != nil {
		return common.Address{}, err
	}
	addr, _, err := d.sender.CreateVault(ctx, factory, factoryABI, config)
	if err != nil {
		return common.Address{}, fmt.Errorf("create %s: %w", name, err)
	}

	artifact, err := d.artifacts.Get(vaultArtifact)
	if err != nil {
		return common.Address{}, err
	}
	d.logger.Info("vault created", zap.String("vault", name), zap.String("address", addr.Hex()), zap.String("explorer", d.addressURL(addr)))
	d.put(data, key, name, addr, artifact)
	return addr, nil
}

func (d *Deployer) whitelist(ctx context.Context, adapter, vault common.Address, assets []common.Address) {
	adapterABI, err := d.abiFor("CompliantStrategyAdapter")
	if err != nil {
		d.logger.Warn("whitelist skipped", zap.Error(err))
		return
	}
	for _, asset := range assets {
		if _, err := d.sender.Transact(ctx, adapter, adapterABI, "whitelistVault", asset, vault); err != nil {
			d.logger.Warn("whitelist vault failed, continuing", zap.String("asset", asset.Hex()), zap.Error(err))
			return
		}
	}
	d.logger.Info("compliant vault whitelisted", zap.Int("assets", len(assets)))
}

func (d *Deployer) attachRewards(ctx context.Context, vault, factoryCompliant, rewards common.Address) {
	vaultABI, err := d.abiFor(contracts.NameVaultCompliant)
	if err != nil {
		d.logger.Warn("rewards module not attached", zap.Error(err))
		return
	}
	values, err := contracts.Call(ctx, d.caller, vault, vaultABI, "owner", nil)
	if err != nil {
		d.logger.Warn("rewards module not attached", zap.String("rewards_module", rewards.Hex()), zap.Error(err))
		return
	}
	owner, err := contracts.AsAddress(values[0])
	if err != nil {
		d.logger.Warn("rewards module not attached", zap.Error(err))
		return
	}

	switch owner {
	case factoryCompliant:
		d.logger.Warn("vault is owned by factory, rewards module can be set later", zap.String("rewards_module", rewards.Hex()))
	case d.sender.From():
		if _, err := d.sender.Transact(ctx, vault, vaultABI, "setRewardsModule", rewards); err != nil {
			d.logger.Warn("set rewards module failed", zap.String("rewards_module", rewards.Hex()), zap.Error(err))
			return
		}
		d.logger.Info("rewards module set", zap.String("vault", vault.Hex()), zap.String("rewards_module", rewards.Hex()))
	default:
		d.logger.Warn("deployer does not own vault, rewards module can be set by the owner",
			zap.String("owner", owner.Hex()),
			zap.String("rewards_module", rewards.Hex()),
		)
	}
}

func (d *Deployer) record(data *contracts.ContractsData) {
	if d.cfg.HistoryPath != "" {
		if err := storage.NewJsonlStorage(d.cfg.HistoryPath).Append(data); err != nil {
			d.logger.Warn("log deployment history", zap.Error(err))
		}
	}

	for _, path := range d.cfg.OutputPaths {
		if err := contracts.Save(path, data); err != nil {
			d.logger.Warn("save contracts data", zap.String("path", path), zap.Error(err))
			continue
		}
		d.logger.Info("contracts data saved", zap.String("path", path))
	}

	if d.cfg.EnvPath != "" {
		if err := UpsertEnvFile(d.cfg.EnvPath, EnvVars(data)); err != nil {
			d.logger.Warn("update env file", zap.Error(err))
		}
	}
}

var envKeys = []struct {
	env      string
	contract string
}{
	{"PRAXOS_FACTORY_ADDRESS", contracts.NameFactory},
	{"PRAXOS_FACTORY_COMPLIANT_ADDRESS", contracts.NameFactoryCompliant},
	{"COMPLIANT_STRATEGY_ADAPTER_ADDRESS", "CompliantStrategyAdapter"},
	{"SIMPLE_PRICE_ORACLE_ADDRESS", "SimplePriceOracle"},
	{"SIMPLE_DIVIDEND_DISTRIBUTOR_ADDRESS", "SimpleDividendDistributor"},
	{"REWARDS_MODULE_ADDRESS", "RewardsModule"},
	{"MOCK_USDC_ADDRESS", contracts.NameMockUSDC},
	{"MOCK_ERC3643_CORPORATE_BOND_ALPHA_ADDRESS", "CorporateBondAlpha"},
	{"MOCK_ERC3643_REAL_ESTATE_BETA_ADDRESS", "RealEstateFundBeta"},
	{"MOCK_ERC3643_STARTUP_FUND_GAMMA_ADDRESS", "StartupFundGamma"},
	{"PRAXOS_VAULT_ADDRESS", contracts.NameDemoVault},
	{"PRAXOS_VAULT_COMPLIANT_ADDRESS", contracts.NameDemoVaultComp},
}

// EnvVars lists the env assignments for a deployment record.
func EnvVars(data *contracts.ContractsData) []EnvVar {
	out := make([]EnvVar, 0, len(envKeys))
	for _, k := range envKeys {
		c, ok := data.Contracts[k.contract]
		if !ok {
			continue
		}
		out = append(out, EnvVar{Key: k.env, Value: c.Address})
	}
	return out
}

func (d *Deployer) put(data *contracts.ContractsData, key, name string, addr common.Address, artifact Artifact) {
	data.Contracts[key] = contracts.ContractData{
		Name:        name,
		Address:     addr.Hex(),
		ExplorerURL: d.addressURL(addr),
		ABIRaw:      artifact.ABI,
	}
}

func (d *Deployer) abiFor(name string) (abi.ABI, error) {
	artifact, err := d.artifacts.Get(name)
	if err != nil {
		return abi.ABI{}, err
	}
	return artifact.Parsed()
}

func (d *Deployer) addressURL(addr common.Address) string {
	return strings.TrimRight(d.cfg.ExplorerURL, "/") + "/address/" + addr.Hex()
}
