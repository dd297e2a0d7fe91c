package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNoDeployment means contracts_data.json is missing, empty, or lacks a deployment.
var ErrNoDeployment = errors.New("no deployment data; run the deploy command first")

// DefaultExplorerURL is used when the deployment record carries no explorer.
const DefaultExplorerURL = "https://devnet-explorer.rayls.com"

// Well-known contract names in the deployment record.
const (
	NameFactory          = "PraxosFactory"
	NameFactoryCompliant = "PraxosFactoryCompliant"
	NameMockUSDC         = "MockUSDC"
	NameDemoVault        = "DemoVault"
	NameDemoVaultComp    = "DemoVaultCompliant"
	NameVault            = "PraxosVault"
	NameVaultCompliant   = "PraxosVaultCompliant"
)

var vaultNames = []string{NameDemoVault, NameDemoVaultComp, NameVault, NameVaultCompliant}

var vaultABINames = []string{NameVault, NameVaultCompliant, NameDemoVault, NameDemoVaultComp}

// ContractData is one deployed contract.
type ContractData struct {
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	ExplorerURL string          `json:"explorerUrl"`
	ABIRaw      json.RawMessage `json:"abiRaw"`
}

// DeploymentConfiguration echoes the parameters the deploy command used.
type DeploymentConfiguration struct {
	VaultStrategy       string   `json:"vaultStrategy"`
	VaultRiskTier       uint8    `json:"vaultRiskTier"`
	VaultTargetDuration uint64   `json:"vaultTargetDuration"`
	VaultWeights        []uint64 `json:"vaultWeights"`
	BondYield           uint64   `json:"bondYield"`
	RealEstateYield     uint64   `json:"realEstateYield"`
	StartupYield        uint64   `json:"startupYield"`
}

// ContractsData is the deployment record consumed by clients.
type ContractsData struct {
	DeploymentID   string                  `json:"deploymentId"`
	DeployedBy     string                  `json:"deployedBy"`
	NetworkName    string                  `json:"networkName"`
	ChainID        string                  `json:"chainId"`
	ExplorerURL    string                  `json:"explorerUrl"`
	DeployedAt     string                  `json:"deployedAt"`
	DeploymentType string                  `json:"deploymentType"`
	Contracts      map[string]ContractData `json:"contracts"`
	Configuration  DeploymentConfiguration `json:"configuration"`
}

// Registry resolves contract addresses and ABIs from a deployment record.
// A nil *Registry behaves like an empty deployment.
type Registry struct {
	data *ContractsData

	mu   sync.Mutex
	abis map[string]abi.ABI
}

// NewRegistry wraps an already-decoded deployment record.
func NewRegistry(data *ContractsData) *Registry {
	return &Registry{data: data, abis: make(map[string]abi.ABI)}
}

// Load reads a deployment record. A missing or incomplete file yields ErrNoDeployment.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoDeployment
		}
		return nil, fmt.Errorf("read contracts data: %w", err)
	}

	data, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewRegistry(data), nil
}

// Parse decodes a deployment record and validates its shape.
func Parse(raw []byte) (*ContractsData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrNoDeployment
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("parse contracts data: %w", err)
	}
	if !isValidShape(shape) {
		return nil, ErrNoDeployment
	}

	var data ContractsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse contracts data: %w", err)
	}
	if data.Contracts == nil {
		data.Contracts = map[string]ContractData{}
	}
	return &data, nil
}

func isValidShape(shape map[string]json.RawMessage) bool {
	id, ok := shape["deploymentId"]
	if !ok {
		return false
	}
	var idStr string
	if err := json.Unmarshal(id, &idStr); err != nil {
		return false
	}

	contracts, ok := shape["contracts"]
	if !ok {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(contracts, &m); err != nil || m == nil {
		return false
	}
	return true
}

// Save writes a deployment record atomically.
func Save(path string, data *ContractsData) error {
	if data == nil {
		return fmt.Errorf("contracts data is nil")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create contracts data dir: %w", err)
		}
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal contracts data: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write contracts data tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename contracts data: %w", err)
	}
	return nil
}

// Data returns the underlying record, or nil when nothing is deployed.
func (r *Registry) Data() *ContractsData {
	if r == nil {
		return nil
	}
	return r.data
}

// Contract returns a contract by name.
func (r *Registry) Contract(name string) (ContractData, bool) {
	if r == nil || r.data == nil {
		return ContractData{}, false
	}
	c, ok := r.data.Contracts[name]
	return c, ok
}

// Address returns a contract address by name.
func (r *Registry) Address(name string) (common.Address, bool) {
	c, ok := r.Contract(name)
	if !ok || !common.IsHexAddress(c.Address) {
		return common.Address{}, false
	}
	return common.HexToAddress(c.Address), true
}

// ABI returns the parsed ABI of a named contract.
func (r *Registry) ABI(name string) (abi.ABI, bool, error) {
	c, ok := r.Contract(name)
	if !ok || len(bytes.TrimSpace(c.ABIRaw)) == 0 || string(c.ABIRaw) == "null" {
		return abi.ABI{}, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if parsed, ok := r.abis[name]; ok {
		return parsed, true, nil
	}
	parsed, err := abi.JSON(bytes.NewReader(c.ABIRaw))
	if err != nil {
		return abi.ABI{}, false, fmt.Errorf("parse %s abi: %w", name, err)
	}
	r.abis[name] = parsed
	return parsed, true, nil
}

// FactoryAddress prefers PraxosFactory and falls back to the compliant factory.
func (r *Registry) FactoryAddress() (common.Address, bool) {
	if addr, ok := r.Address(NameFactory); ok {
		return addr, true
	}
	return r.Address(NameFactoryCompliant)
}

// FactoryABI returns the registry factory ABI or the built-in one.
func (r *Registry) FactoryABI() (abi.ABI, error) {
	return r.firstABI([]string{NameFactory, NameFactoryCompliant}, FactoryABI)
}

// USDCAddress returns the mock USDC address.
func (r *Registry) USDCAddress() (common.Address, bool) {
	return r.Address(NameMockUSDC)
}

// USDCABI returns the registry mock USDC ABI or the built-in ERC-20 one.
func (r *Registry) USDCABI() (abi.ABI, error) {
	return r.firstABI([]string{NameMockUSDC}, ERC20ABI)
}

// VaultAddresses lists vault contracts recorded in the deployment.
func (r *Registry) VaultAddresses() []common.Address {
	out := make([]common.Address, 0, len(vaultNames))
	for _, name := range vaultNames {
		if addr, ok := r.Address(name); ok {
			out = append(out, addr)
		}
	}
	return out
}

// VaultABI returns the registry vault ABI or the built-in one.
func (r *Registry) VaultABI() (abi.ABI, error) {
	return r.firstABI(vaultABINames, VaultABI)
}

// ExplorerURL returns the deployment explorer base URL.
func (r *Registry) ExplorerURL() string {
	if r == nil || r.data == nil || r.data.ExplorerURL == "" {
		return DefaultExplorerURL
	}
	return r.data.ExplorerURL
}

// TxExplorerURL links a transaction hash on the explorer.
func (r *Registry) TxExplorerURL(hash string) string {
	return strings.TrimRight(r.ExplorerURL(), "/") + "/tx/" + hash
}

// AddressExplorerURL links an address on the explorer.
func (r *Registry) AddressExplorerURL(address common.Address) string {
	return strings.TrimRight(r.ExplorerURL(), "/") + "/address/" + address.Hex()
}

func (r *Registry) firstABI(names []string, fallback func() (abi.ABI, error)) (abi.ABI, error) {
	if r != nil {
		for _, name := range names {
			parsed, ok, err := r.ABI(name)
			if err != nil {
				return abi.ABI{}, err
			}
			if ok {
				return parsed, nil
			}
		}
	}
	return fallback()
}
