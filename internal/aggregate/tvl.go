package aggregate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	tvlMethodBlock  = "total_assets_block"
	tvlMethodLatest = "total_assets_latest"
	tvlMethodNone   = "unavailable"
)

// VaultState is the on-chain view the aggregator needs; *vault.Reader satisfies it.
type VaultState interface {
	BaseAsset(ctx context.Context, vault common.Address) (common.Address, error)
	Decimals(ctx context.Context, token common.Address) uint8
	TotalAssetsAt(ctx context.Context, vault common.Address, block *big.Int) (*big.Int, error)
}

func (a *Aggregator) fetchTVL(ctx context.Context, vaultAddr string, blockNumber uint64) (*big.Int, string, error) {
	if !common.IsHexAddress(vaultAddr) {
		return nil, tvlMethodNone, fmt.Errorf("invalid vault address: %s", vaultAddr)
	}
	vault := common.HexToAddress(vaultAddr)

	total, err := a.state.TotalAssetsAt(ctx, vault, new(big.Int).SetUint64(blockNumber))
	if err == nil {
		return total, tvlMethodBlock, nil
	}
	a.logger.Debug("historical totalAssets failed", zap.String("vault", vaultAddr), zap.Error(err))

	total, err = a.state.TotalAssetsAt(ctx, vault, nil)
	if err == nil {
		return total, tvlMethodLatest, nil
	}
	return nil, tvlMethodNone, fmt.Errorf("totalAssets: %w", err)
}

// unitDecimals are the display decimals of a vault's asset amounts and of its shares.
type unitDecimals struct {
	assets uint8
	shares uint8
}

// vaultDecimals resolves asset decimals through the vault's base asset and share
// decimals from the vault token itself, once per vault.
func (a *Aggregator) vaultDecimals(ctx context.Context, vaultAddr string) unitDecimals {
	key := vaultKey(vaultAddr)
	if d, ok := a.decimals[key]; ok {
		return d
	}
	d := unitDecimals{assets: defaultDecimals, shares: defaultDecimals}
	if common.IsHexAddress(vaultAddr) {
		vault := common.HexToAddress(vaultAddr)
		d.shares = a.state.Decimals(ctx, vault)
		asset, err := a.state.BaseAsset(ctx, vault)
		if err != nil {
			a.logger.Warn("vault base asset", zap.String("vault", vaultAddr), zap.Error(err))
		} else {
			d.assets = a.state.Decimals(ctx, asset)
		}
	}
	a.decimals[key] = d
	return d
}
