package strategy

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TotalWeight is the sum of a strategy's weights in basis points.
const TotalWeight = 10000

// ErrStrategyNotFound is returned when no generated strategy has the requested id.
var ErrStrategyNotFound = errors.New("strategy not found")

// Template holds the selection rules of one strategy family.
type Template struct {
	ID                 string
	Name               string
	RiskTier           int
	TargetDuration     int
	MaxAssets          int
	MinCreditScore     float64
	MinYield           float64
	MinDiversification int
}

// Templates lists the built-in strategy families in generation order.
var Templates = []Template{
	{ID: "conservative-short-term", Name: "Conservative Short-Term Vault", RiskTier: 1, TargetDuration: 90, MaxAssets: 5, MinCreditScore: 80},
	{ID: "real-estate-heavy", Name: "Real Estate Heavy Vault", RiskTier: 3, TargetDuration: 1825, MaxAssets: 4},
	{ID: "startup-exposure", Name: "Startup Exposure Vault", RiskTier: 4, TargetDuration: 0, MaxAssets: 6},
	{ID: "balanced-diversified", Name: "Balanced Diversified Vault", RiskTier: 3, TargetDuration: 1095, MaxAssets: 8, MinDiversification: 5},
	{ID: "high-yield-long-term", Name: "High-Yield Long-Term Vault", RiskTier: 5, TargetDuration: 3650, MaxAssets: 6, MinYield: 10},
}

// LookupTemplate returns the template with the given id.
func LookupTemplate(id string) (Template, bool) {
	for _, tpl := range Templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return Template{}, false
}

// Strategy is a generated vault allocation.
type Strategy struct {
	ID                   string   `json:"strategy_id"`
	Name                 string   `json:"name"`
	RiskTier             int      `json:"risk_tier"`
	TargetDuration       int      `json:"target_duration"`
	Assets               []string `json:"assets"`
	Weights              []int    `json:"weights"`
	ExpectedYield        float64  `json:"expected_yield"`
	DiversificationScore float64  `json:"diversification_score"`
}

// Engine builds strategies from risk signatures and remembers them by id.
type Engine struct {
	mu        sync.RWMutex
	generated map[string]Strategy
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{generated: make(map[string]Strategy)}
}

// Generate builds one strategy per requested template. An empty types list means all
// templates; unknown ids are ignored, as are templates no asset qualifies for.
func (e *Engine) Generate(sigs []RiskSignature, types []string) []Strategy {
	templates := Templates
	if len(types) > 0 {
		templates = make([]Template, 0, len(types))
		for _, id := range types {
			if tpl, ok := LookupTemplate(id); ok {
				templates = append(templates, tpl)
			}
		}
	}

	out := make([]Strategy, 0, len(templates))
	for _, tpl := range templates {
		s, ok := Build(tpl, sigs)
		if !ok {
			continue
		}
		out = append(out, s)
	}

	e.mu.Lock()
	for _, s := range out {
		e.generated[s.ID] = s
	}
	e.mu.Unlock()
	return out
}

// ByID returns the strategy with the given id; the latest generation wins.
func (e *Engine) ByID(id string) (Strategy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.generated[id]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	return s, nil
}

// Build applies a template to the available assets.
func Build(tpl Template, sigs []RiskSignature) (Strategy, bool) {
	candidates := filterAssets(tpl, sigs)
	if len(candidates) == 0 {
		return Strategy{}, false
	}
	selected := selectAssets(tpl, candidates)
	if len(selected) == 0 {
		return Strategy{}, false
	}

	weights := allocateWeights(selected)
	assets := make([]string, len(selected))
	for i, sig := range selected {
		assets[i] = sig.AssetAddress
	}

	return Strategy{
		ID:                   tpl.ID,
		Name:                 strategyName(tpl, len(selected)),
		RiskTier:             tpl.RiskTier,
		TargetDuration:       tpl.TargetDuration,
		Assets:               assets,
		Weights:              weights,
		ExpectedYield:        expectedYield(selected, weights),
		DiversificationScore: diversification(selected),
	}, true
}

func filterAssets(tpl Template, sigs []RiskSignature) []RiskSignature {
	out := make([]RiskSignature, 0, len(sigs))
	for _, sig := range sigs {
		if absInt(sig.RiskTier-tpl.RiskTier) > 1 {
			continue
		}
		if tpl.MinCreditScore > 0 && sig.CreditScore < tpl.MinCreditScore {
			continue
		}
		if tpl.MinYield > 0 && sig.AnnualYield < tpl.MinYield {
			continue
		}
		if tpl.TargetDuration > 0 {
			diff := absInt(sig.MaturityDays - tpl.TargetDuration)
			if float64(diff) > float64(tpl.TargetDuration)*0.5 {
				continue
			}
		}
		out = append(out, sig)
	}
	return out
}

func selectAssets(tpl Template, candidates []RiskSignature) []RiskSignature {
	maxAssets := tpl.MaxAssets
	if len(candidates) < maxAssets {
		maxAssets = len(candidates)
	}
	minDiv := tpl.MinDiversification
	if minDiv == 0 {
		minDiv = 2
	}

	picked := make([]bool, len(candidates))
	selected := make([]RiskSignature, 0, maxAssets)
	seen := make(map[string]bool)
	for i, sig := range candidates {
		if len(selected) >= maxAssets {
			break
		}
		if seen[sig.AssetType] {
			continue
		}
		seen[sig.AssetType] = true
		picked[i] = true
		selected = append(selected, sig)
	}
	for i, sig := range candidates {
		if len(selected) >= maxAssets {
			break
		}
		if picked[i] {
			continue
		}
		picked[i] = true
		selected = append(selected, sig)
	}

	if len(selected) < minDiv {
		n := maxAssets
		if minDiv > n {
			n = minDiv
		}
		if n > len(candidates) {
			n = len(candidates)
		}
		selected = append([]RiskSignature(nil), candidates[:n]...)
	}
	if len(selected) > maxAssets {
		selected = selected[:maxAssets]
	}
	return selected
}

func assetScore(sig RiskSignature) float64 {
	return sig.CreditScore*0.4 + sig.AnnualYield*10*0.6
}

func allocateWeights(assets []RiskSignature) []int {
	n := len(assets)
	if n == 0 {
		return nil
	}
	base := TotalWeight / n

	var totalScore float64
	for _, sig := range assets {
		totalScore += assetScore(sig)
	}

	raw := make([]int, n)
	total := 0
	for i, sig := range assets {
		w := base
		if totalScore > 0 {
			w = int(assetScore(sig) / totalScore * TotalWeight)
		}
		raw[i] = w
		total += w
	}
	if total <= 0 {
		equal := make([]int, n)
		for i := range equal {
			equal[i] = base
		}
		return equal
	}

	weights := make([]int, n)
	sum := 0
	for i, w := range raw {
		weights[i] = w * TotalWeight / total
		sum += weights[i]
	}
	weights[0] += TotalWeight - sum
	return weights
}

func expectedYield(assets []RiskSignature, weights []int) float64 {
	if len(assets) != len(weights) {
		return 0
	}
	var y float64
	for i, sig := range assets {
		y += sig.AnnualYield * float64(weights[i]) / TotalWeight
	}
	return y
}

func diversification(assets []RiskSignature) float64 {
	if len(assets) == 0 {
		return 0
	}
	types := make(map[string]struct{})
	minTier, maxTier := assets[0].RiskTier, assets[0].RiskTier
	for _, sig := range assets {
		types[sig.AssetType] = struct{}{}
		if sig.RiskTier < minTier {
			minTier = sig.RiskTier
		}
		if sig.RiskTier > maxTier {
			maxTier = sig.RiskTier
		}
	}

	denom := len(assets)
	if denom < 5 {
		denom = 5
	}
	typeDiversity := float64(len(types)) / float64(denom) * 50
	tierDiversity := float64(maxTier-minTier) * 10
	if tierDiversity > 50 {
		tierDiversity = 50
	}
	score := typeDiversity + tierDiversity
	if score > 100 {
		score = 100
	}
	return score
}

func strategyName(tpl Template, count int) string {
	name := tpl.Name
	if name == "" {
		name = titleWords(strings.ReplaceAll(tpl.ID, "-", " "))
	}
	if count > 0 {
		name = fmt.Sprintf("%s (%d Assets)", name, count)
	}
	return name
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// VaultConfig is the argument of the factory's createVault call.
type VaultConfig struct {
	BaseAsset      common.Address   `json:"baseAsset"`
	Name           string           `json:"name"`
	Symbol         string           `json:"symbol"`
	Strategy       string           `json:"strategy"`
	RiskTier       uint8            `json:"riskTier"`
	TargetDuration *big.Int         `json:"targetDuration"`
	Assets         []common.Address `json:"assets"`
	Weights        []*big.Int       `json:"weights"`
}

// Args returns the config keyed by the tuple's component names.
func (c VaultConfig) Args() map[string]interface{} {
	return map[string]interface{}{
		"baseAsset":      c.BaseAsset,
		"name":           c.Name,
		"symbol":         c.Symbol,
		"strategy":       c.Strategy,
		"riskTier":       c.RiskTier,
		"targetDuration": c.TargetDuration,
		"assets":         c.Assets,
		"weights":        c.Weights,
	}
}

// DefaultSymbol derives a vault symbol from a strategy id.
func DefaultSymbol(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", ""))
}

// DeploymentConfig turns a generated strategy into a createVault config. Empty name and
// symbol fall back to the strategy name and DefaultSymbol.
func (e *Engine) DeploymentConfig(id string, baseAsset common.Address, name, symbol string) (VaultConfig, error) {
	s, err := e.ByID(id)
	if err != nil {
		return VaultConfig{}, err
	}
	return NewVaultConfig(s, baseAsset, name, symbol)
}

// NewVaultConfig builds a createVault config from s.
func NewVaultConfig(s Strategy, baseAsset common.Address, name, symbol string) (VaultConfig, error) {
	if name == "" {
		name = s.Name
	}
	if symbol == "" {
		symbol = DefaultSymbol(s.ID)
	}
	if s.RiskTier < 0 || s.RiskTier > 255 {
		return VaultConfig{}, fmt.Errorf("risk tier %d out of range", s.RiskTier)
	}
	if len(s.Assets) != len(s.Weights) {
		return VaultConfig{}, fmt.Errorf("strategy %s has %d assets and %d weights", s.ID, len(s.Assets), len(s.Weights))
	}

	assets := make([]common.Address, len(s.Assets))
	weights := make([]*big.Int, len(s.Weights))
	for i, a := range s.Assets {
		if !common.IsHexAddress(a) {
			return VaultConfig{}, fmt.Errorf("strategy %s asset %q is not an address", s.ID, a)
		}
		assets[i] = common.HexToAddress(a)
		weights[i] = big.NewInt(int64(s.Weights[i]))
	}

	return VaultConfig{
		BaseAsset:      baseAsset,
		Name:           name,
		Symbol:         symbol,
		Strategy:       s.ID,
		RiskTier:       uint8(s.RiskTier),
		TargetDuration: new(big.Int).Mul(big.NewInt(int64(s.TargetDuration)), big.NewInt(secondsPerDay)),
		Assets:         assets,
		Weights:        weights,
	}, nil
}
