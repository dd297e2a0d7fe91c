package vault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"praxos/internal/model"
)

// USDCDecimals is the precision used when presenting vault totals.
const USDCDecimals = 6

// Asset describes one underlying holding shown for a vault.
type Asset struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Provider    string `json:"provider"`
	Country     string `json:"country"`
	Rating      string `json:"rating"`
	Description string `json:"description"`
}

// View is the presentation form of a vault.
type View struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	APR             float64 `json:"apr"`
	MatchPercentage int     `json:"matchPercentage"`
	IsNew           bool    `json:"isNew"`
	Assets          []Asset `json:"assets"`
}

var strategyAssets = []struct {
	keyword string
	asset   Asset
}{
	{"bond", Asset{Name: "Corporate Bond Alpha", Type: "bond", Provider: "BlackRock", Country: "USA", Rating: "AAA", Description: "High-grade corporate debt"}},
	{"real", Asset{Name: "Real Estate Fund Beta", Type: "reit", Provider: "Vanguard", Country: "USA", Rating: "A", Description: "Commercial real estate investment trust"}},
	{"startup", Asset{Name: "Startup Fund Gamma", Type: "fund", Provider: "Goldman Sachs", Country: "USA", Rating: "BBB", Description: "Venture capital and private equity fund"}},
}

var defaultAsset = Asset{Name: "Diversified Portfolio", Type: "etf", Provider: "BlackRock", Country: "Global", Rating: "A", Description: "Multi-asset diversified strategy"}

// ToView converts on-chain vault state into its presentation form.
// index is the vault's position in the listing.
func ToView(info model.VaultInfo, index int) View {
	apr, _ := decimal.NewFromFloat(3 + float64(info.RiskTier)*1.5).Round(2).Float64()

	return View{
		ID:   info.Address.Hex(),
		Name: info.Name,
		Description: fmt.Sprintf("%s vault with %d risk tier. Total assets: %s USDC",
			info.Strategy, info.RiskTier, TotalAssetsValue(info)),
		APR:             apr,
		MatchPercentage: 85 + index*3,
		IsNew:           index == 0,
		Assets:          StrategyAssets(info.Strategy),
	}
}

// ToViews converts a listing, preserving order.
func ToViews(infos []model.VaultInfo) []View {
	out := make([]View, 0, len(infos))
	for i, info := range infos {
		out = append(out, ToView(info, i))
	}
	return out
}

// StrategyAssets derives display assets from strategy keywords.
func StrategyAssets(strategy string) []Asset {
	assets := make([]Asset, 0, len(strategyAssets))
	for _, entry := range strategyAssets {
		if containsKeyword(strategy, entry.keyword) {
			assets = append(assets, entry.asset)
		}
	}
	if len(assets) == 0 {
		assets = append(assets, defaultAsset)
	}
	return assets
}

// containsKeyword matches the keyword in lower case or with its first letter capitalised.
func containsKeyword(s, keyword string) bool {
	title := strings.ToUpper(keyword[:1]) + keyword[1:]
	return strings.Contains(s, keyword) || strings.Contains(s, title)
}

// TotalAssetsValue formats total assets in USDC units.
func TotalAssetsValue(info model.VaultInfo) string {
	return FormatUnits(info.TotalAssets, USDCDecimals)
}

// SharePrice returns totalAssets/totalSupply scaled by 1e6, with two decimals.
func SharePrice(info model.VaultInfo) string {
	if info.TotalSupply == nil || info.TotalSupply.Sign() == 0 {
		return "1.00"
	}
	assets := decimal.NewFromBigInt(nonNil(info.TotalAssets), 0)
	supply := decimal.NewFromBigInt(info.TotalSupply, 0)
	return assets.DivRound(supply, 18).Mul(decimal.New(1, USDCDecimals)).StringFixed(2)
}

// FormatUnits renders a base-unit amount with trailing zeros trimmed.
func FormatUnits(value *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(nonNil(value), -int32(decimals)).String()
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
