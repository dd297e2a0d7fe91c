package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VaultInfo is the on-chain state of a single vault at read time.
type VaultInfo struct {
	Address        common.Address
	Name           string
	Symbol         string
	Strategy       string
	RiskTier       uint8
	TargetDuration *big.Int
	AssetCount     *big.Int
	TotalAssets    *big.Int
	TotalSupply    *big.Int
	Asset          common.Address
}

type vaultInfoJSON struct {
	Address        string `json:"address"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Strategy       string `json:"strategy"`
	RiskTier       uint8  `json:"riskTier"`
	TargetDuration string `json:"targetDuration"`
	AssetCount     string `json:"assetCount"`
	TotalAssets    string `json:"totalAssets"`
	TotalSupply    string `json:"totalSupply"`
	Asset          string `json:"asset"`
}

// MarshalJSON encodes big integers as decimal strings.
func (v VaultInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(vaultInfoJSON{
		Address:        v.Address.Hex(),
		Name:           v.Name,
		Symbol:         v.Symbol,
		Strategy:       v.Strategy,
		RiskTier:       v.RiskTier,
		TargetDuration: bigString(v.TargetDuration),
		AssetCount:     bigString(v.AssetCount),
		TotalAssets:    bigString(v.TotalAssets),
		TotalSupply:    bigString(v.TotalSupply),
		Asset:          v.Asset.Hex(),
	})
}

// UnmarshalJSON decodes the string-encoded form produced by MarshalJSON.
func (v *VaultInfo) UnmarshalJSON(data []byte) error {
	var raw vaultInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := VaultInfo{
		Address:  common.HexToAddress(raw.Address),
		Name:     raw.Name,
		Symbol:   raw.Symbol,
		Strategy: raw.Strategy,
		RiskTier: raw.RiskTier,
		Asset:    common.HexToAddress(raw.Asset),
	}
	var err error
	if out.TargetDuration, err = parseBig(raw.TargetDuration); err != nil {
		return fmt.Errorf("targetDuration: %w", err)
	}
	if out.AssetCount, err = parseBig(raw.AssetCount); err != nil {
		return fmt.Errorf("assetCount: %w", err)
	}
	if out.TotalAssets, err = parseBig(raw.TotalAssets); err != nil {
		return fmt.Errorf("totalAssets: %w", err)
	}
	if out.TotalSupply, err = parseBig(raw.TotalSupply); err != nil {
		return fmt.Errorf("totalSupply: %w", err)
	}
	*v = out
	return nil
}

// Allocation is one entry of a vault's target allocation.
type Allocation struct {
	Asset     string `json:"asset"`
	WeightBps uint64 `json:"weightBps"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
