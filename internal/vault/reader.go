package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"praxos/internal/contracts"
	"praxos/internal/model"
)

const (
	DefaultConcurrency = 4
	DefaultMaxVaults   = 10
	DefaultDecimals    = 18
)

// Options tunes the vault listing fan-out.
type Options struct {
	Concurrency int
	MaxVaults   int
}

// Reader reads vault, factory and token state through contract calls.
type Reader struct {
	caller   contracts.Caller
	registry *contracts.Registry
	logger   *zap.Logger
	opts     Options
	decimals *DecimalsCache
}

// NewReader builds a Reader. A nil registry means only explicit addresses can be read.
func NewReader(caller contracts.Caller, registry *contracts.Registry, opts Options, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxVaults <= 0 {
		opts.MaxVaults = DefaultMaxVaults
	}
	return &Reader{
		caller:   caller,
		registry: registry,
		logger:   logger,
		opts:     opts,
		decimals: NewDecimalsCache(),
	}
}

// Registry returns the registry the reader resolves contracts from.
func (r *Reader) Registry() *contracts.Registry {
	return r.registry
}

func (r *Reader) factory() (common.Address, abi.ABI, error) {
	addr, ok := r.registry.FactoryAddress()
	if !ok {
		return common.Address{}, abi.ABI{}, contracts.ErrNoDeployment
	}
	parsed, err := r.registry.FactoryABI()
	if err != nil {
		return common.Address{}, abi.ABI{}, err
	}
	return addr, parsed, nil
}

// AllVaults returns every vault registered on the factory.
func (r *Reader) AllVaults(ctx context.Context) ([]common.Address, error) {
	addr, parsed, err := r.factory()
	if err != nil {
		return nil, err
	}
	values, err := contracts.Call(ctx, r.caller, addr, parsed, "getAllVaults", nil)
	if err != nil {
		return nil, err
	}
	return contracts.AsAddresses(values[0])
}

// VaultCount returns the factory vault count.
func (r *Reader) VaultCount(ctx context.Context) (*big.Int, error) {
	addr, parsed, err := r.factory()
	if err != nil {
		return nil, err
	}
	values, err := contracts.Call(ctx, r.caller, addr, parsed, "getVaultCount", nil)
	if err != nil {
		return nil, err
	}
	return contracts.AsBigInt(values[0])
}

// IsVault reports whether the factory created vault.
func (r *Reader) IsVault(ctx context.Context, vault common.Address) (bool, error) {
	addr, parsed, err := r.factory()
	if err != nil {
		return false, err
	}
	values, err := contracts.Call(ctx, r.caller, addr, parsed, "isVault", nil, vault)
	if err != nil {
		return false, err
	}
	return contracts.AsBool(values[0])
}

// Info reads the full state of one vault. Any failed call fails the read.
func (r *Reader) Info(ctx context.Context, vault common.Address) (model.VaultInfo, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return model.VaultInfo{}, err
	}

	info := model.VaultInfo{Address: vault}

	values, err := contracts.Call(ctx, r.caller, vault, parsed, "name", nil)
	if err != nil {
		return model.VaultInfo{}, err
	}
	if info.Name, err = contracts.AsString(values[0]); err != nil {
		return model.VaultInfo{}, err
	}

	values, err = contracts.Call(ctx, r.caller, vault, parsed, "symbol", nil)
	if err != nil {
		return model.VaultInfo{}, err
	}
	if info.Symbol, err = contracts.AsString(values[0]); err != nil {
		return model.VaultInfo{}, err
	}

	values, err = contracts.Call(ctx, r.caller, vault, parsed, "getVaultInfo", nil)
	if err != nil {
		return model.VaultInfo{}, err
	}
	if len(values) != 4 {
		return model.VaultInfo{}, fmt.Errorf("getVaultInfo return size %d", len(values))
	}
	if info.Strategy, err = contracts.AsString(values[0]); err != nil {
		return model.VaultInfo{}, err
	}
	if info.RiskTier, err = contracts.AsUint8(values[1]); err != nil {
		return model.VaultInfo{}, err
	}
	if info.TargetDuration, err = contracts.AsBigInt(values[2]); err != nil {
		return model.VaultInfo{}, err
	}
	if info.AssetCount, err = contracts.AsBigInt(values[3]); err != nil {
		return model.VaultInfo{}, err
	}

	if info.TotalAssets, err = r.callBig(ctx, vault, parsed, "totalAssets"); err != nil {
		return model.VaultInfo{}, err
	}
	if info.TotalSupply, err = r.callBig(ctx, vault, parsed, "totalSupply"); err != nil {
		return model.VaultInfo{}, err
	}

	values, err = contracts.Call(ctx, r.caller, vault, parsed, "asset", nil)
	if err != nil {
		return model.VaultInfo{}, err
	}
	if info.Asset, err = contracts.AsAddress(values[0]); err != nil {
		return model.VaultInfo{}, err
	}

	return info, nil
}

// BaseAsset returns the ERC-20 token the vault accepts.
func (r *Reader) BaseAsset(ctx context.Context, vault common.Address) (common.Address, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := contracts.Call(ctx, r.caller, vault, parsed, "asset", nil)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.AsAddress(values[0])
}

// Owner returns the vault owner.
func (r *Reader) Owner(ctx context.Context, vault common.Address) (common.Address, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return common.Address{}, err
	}
	values, err := contracts.Call(ctx, r.caller, vault, parsed, "owner", nil)
	if err != nil {
		return common.Address{}, err
	}
	return contracts.AsAddress(values[0])
}

// Balance returns the share balance of user in vault.
func (r *Reader) Balance(ctx context.Context, vault, user common.Address) (*big.Int, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return nil, err
	}
	return r.callBig(ctx, vault, parsed, "balanceOf", user)
}

// Allocations returns the vault's target assets and weights.
func (r *Reader) Allocations(ctx context.Context, vault common.Address) ([]model.Allocation, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return nil, err
	}
	values, err := contracts.Call(ctx, r.caller, vault, parsed, "getAllocations", nil)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("getAllocations return size %d", len(values))
	}
	assets, err := contracts.AsAddresses(values[0])
	if err != nil {
		return nil, err
	}
	weights, err := contracts.AsBigInts(values[1])
	if err != nil {
		return nil, err
	}
	if len(assets) != len(weights) {
		return nil, fmt.Errorf("allocations length mismatch: %d assets, %d weights", len(assets), len(weights))
	}

	out := make([]model.Allocation, 0, len(assets))
	for i, asset := range assets {
		out = append(out, model.Allocation{Asset: asset.Hex(), WeightBps: weights[i].Uint64()})
	}
	return out, nil
}

// TotalAssetsAt returns the vault's totalAssets at block; nil means latest.
func (r *Reader) TotalAssetsAt(ctx context.Context, vault common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := r.registry.VaultABI()
	if err != nil {
		return nil, err
	}
	values, err := contracts.Call(ctx, r.caller, vault, parsed, "totalAssets", block)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("totalAssets return size %d", len(values))
	}
	return contracts.AsBigInt(values[0])
}

// TokenBalance returns an ERC-20 balance.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := contracts.ERC20ABI()
	if err != nil {
		return nil, err
	}
	return r.callBig(ctx, token, parsed, "balanceOf", owner)
}

// Allowance returns the ERC-20 allowance owner granted spender.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := contracts.ERC20ABI()
	if err != nil {
		return nil, err
	}
	return r.callBig(ctx, token, parsed, "allowance", owner, spender)
}

// Decimals returns token decimals, defaulting to 18 when the call fails.
func (r *Reader) Decimals(ctx context.Context, token common.Address) uint8 {
	if decimals, ok := r.decimals.Get(token); ok {
		return decimals
	}
	decimals, err := r.fetchDecimals(ctx, token)
	if err != nil {
		r.logger.Warn("token decimals", zap.String("token", token.Hex()), zap.Error(err))
		return DefaultDecimals
	}
	r.decimals.Set(token, decimals)
	return decimals
}

func (r *Reader) fetchDecimals(ctx context.Context, token common.Address) (uint8, error) {
	parsed, err := contracts.ERC20ABI()
	if err != nil {
		return 0, err
	}
	values, err := contracts.Call(ctx, r.caller, token, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	return contracts.AsUint8(values[0])
}

// Addresses merges factory vaults with the registry's vaults, deduplicated and capped.
func (r *Reader) Addresses(ctx context.Context) ([]common.Address, error) {
	registryVaults := r.registry.VaultAddresses()

	factoryVaults, err := r.AllVaults(ctx)
	if err != nil {
		if len(registryVaults) == 0 {
			return nil, err
		}
		if !errors.Is(err, contracts.ErrNoDeployment) {
			r.logger.Warn("factory vault listing failed", zap.Error(err))
		}
	}

	seen := make(map[common.Address]struct{}, len(factoryVaults)+len(registryVaults))
	out := make([]common.Address, 0, len(factoryVaults)+len(registryVaults))
	for _, group := range [][]common.Address{factoryVaults, registryVaults} {
		for _, addr := range group {
			if addr == (common.Address{}) {
				continue
			}
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	if len(out) > r.opts.MaxVaults {
		out = out[:r.opts.MaxVaults]
	}
	return out, nil
}

// List reads every known vault. Vaults that fail to read are skipped.
func (r *Reader) List(ctx context.Context) ([]model.VaultInfo, error) {
	addrs, err := r.Addresses(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*model.VaultInfo, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			info, err := r.Info(gctx, addr)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("skip vault", zap.String("vault", addr.Hex()), zap.Error(err))
				return nil
			}
			results[i] = &info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.VaultInfo, 0, len(results))
	for _, info := range results {
		if info != nil {
			out = append(out, *info)
		}
	}
	return out, nil
}

func (r *Reader) callBig(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	values, err := contracts.Call(ctx, r.caller, to, parsed, method, nil, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return contracts.AsBigInt(values[0])
}

// DecimalsCache caches token decimals by address.
type DecimalsCache struct {
	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewDecimalsCache() *DecimalsCache {
	return &DecimalsCache{data: make(map[common.Address]uint8)}
}

func (c *DecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *DecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}
