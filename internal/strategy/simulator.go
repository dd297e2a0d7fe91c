package strategy

import (
	"time"
)

const secondsPerDay = 86400

// Token is the description of an RWA token fed into the simulator.
type Token struct {
	Address           string `json:"address" binding:"required"`
	AssetType         string `json:"asset_type" binding:"required"`
	AnnualYield       int64  `json:"annual_yield" binding:"gte=0"`
	MaturityTimestamp int64  `json:"maturity_timestamp" binding:"gte=0"`
	RiskTier          int    `json:"risk_tier" binding:"required,min=1,max=5"`
}

// RiskSignature is the simulated risk profile of a single asset.
type RiskSignature struct {
	AssetAddress       string             `json:"asset_address"`
	AssetType          string             `json:"asset_type"`
	AnnualYield        float64            `json:"annual_yield"`
	MaturityDays       int                `json:"maturity_days"`
	RiskTier           int                `json:"risk_tier"`
	RiskScore          float64            `json:"risk_score"`
	Volatility         float64            `json:"volatility"`
	LiquidityScore     float64            `json:"liquidity_score"`
	CreditScore        float64            `json:"credit_score"`
	CorrelationFactors map[string]float64 `json:"correlation_factors"`
}

type assetProfile struct {
	volatility  float64
	liquidity   float64
	correlation map[string]float64
}

var assetProfiles = map[string]assetProfile{
	"corporate-bond": {
		volatility:  0.05,
		liquidity:   0.7,
		correlation: map[string]float64{"interest_rates": 0.7, "credit_spreads": 0.6, "equities": 0.2},
	},
	"real-estate": {
		volatility:  0.12,
		liquidity:   0.4,
		correlation: map[string]float64{"interest_rates": 0.5, "property_market": 0.8, "equities": 0.4},
	},
	"startup-fund": {
		volatility:  0.35,
		liquidity:   0.2,
		correlation: map[string]float64{"equities": 0.7, "venture_cycle": 0.9, "interest_rates": 0.3},
	},
}

var defaultProfile = assetProfile{
	volatility:  0.15,
	liquidity:   0.5,
	correlation: map[string]float64{"equities": 0.5},
}

// Simulate derives the risk signature of token as seen at now.
func Simulate(token Token, now time.Time) RiskSignature {
	profile, ok := assetProfiles[token.AssetType]
	if !ok {
		profile = defaultProfile
	}

	correlation := make(map[string]float64, len(profile.correlation))
	for k, v := range profile.correlation {
		correlation[k] = v
	}

	return RiskSignature{
		AssetAddress:       token.Address,
		AssetType:          token.AssetType,
		AnnualYield:        float64(token.AnnualYield) / 100,
		MaturityDays:       maturityDays(token.MaturityTimestamp, now),
		RiskTier:           token.RiskTier,
		RiskScore:          clamp(0.7*float64(token.RiskTier)/5+0.3*profile.volatility, 0, 1),
		Volatility:         profile.volatility,
		LiquidityScore:     profile.liquidity,
		CreditScore:        100 - 15*float64(token.RiskTier-1),
		CorrelationFactors: correlation,
	}
}

// SimulateAll runs Simulate over tokens, keeping their order.
func SimulateAll(tokens []Token, now time.Time) []RiskSignature {
	out := make([]RiskSignature, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, Simulate(token, now))
	}
	return out
}

// maturityDays is 0 for open-ended or already matured assets.
func maturityDays(maturity int64, now time.Time) int {
	if maturity <= 0 {
		return 0
	}
	remaining := maturity - now.Unix()
	if remaining <= 0 {
		return 0
	}
	return int(remaining / secondsPerDay)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
