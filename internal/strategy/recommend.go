package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Horizon buckets an investment period.
type Horizon string

const (
	HorizonShort  Horizon = "short-term"
	HorizonMedium Horizon = "medium-term"
	HorizonLong   Horizon = "long-term"
)

// Default preferences used when a request leaves a field unset.
const (
	DefaultRiskTolerance  = 3
	DefaultHorizonDays    = 365
	DefaultTargetYieldBps = 600
)

// Preferences describes what an investor is looking for.
type Preferences struct {
	RiskTolerance  int
	HorizonDays    int
	TargetYieldBps int
}

// Recommendation scores one strategy against a set of preferences.
type Recommendation struct {
	VaultAddress   string  `json:"vault_address"`
	VaultName      string  `json:"vault_name"`
	StrategyID     string  `json:"strategy_id"`
	MatchScore     float64 `json:"match_score"`
	RiskTier       int     `json:"risk_tier"`
	ExpectedYield  float64 `json:"expected_yield"`
	TimeframeMatch bool    `json:"timeframe_match"`
	Reasoning      string  `json:"reasoning"`
}

// HorizonFor buckets a number of days.
func HorizonFor(days int) Horizon {
	switch {
	case days <= 365:
		return HorizonShort
	case days <= 1095:
		return HorizonMedium
	default:
		return HorizonLong
	}
}

// Recommend ranks strategies by how well they match prefs, best first.
func Recommend(prefs Preferences, strategies []Strategy) []Recommendation {
	horizon := HorizonFor(prefs.HorizonDays)
	minYield := float64(prefs.TargetYieldBps) / 100

	out := make([]Recommendation, 0, len(strategies))
	for _, s := range strategies {
		timeframeMatch := s.TargetDuration == 0 || HorizonFor(s.TargetDuration) == horizon
		yieldMet := prefs.TargetYieldBps <= 0 || s.ExpectedYield >= minYield

		score := 1 - math.Abs(float64(s.RiskTier-prefs.RiskTolerance))/4
		if !timeframeMatch {
			score -= 0.2
		}
		if !yieldMet {
			score -= 0.2
		}

		address := "0x0"
		if len(s.Assets) > 0 {
			address = s.Assets[0]
		}

		out = append(out, Recommendation{
			VaultAddress:   address,
			VaultName:      s.Name,
			StrategyID:     s.ID,
			MatchScore:     clamp(score, 0, 1),
			RiskTier:       s.RiskTier,
			ExpectedYield:  s.ExpectedYield,
			TimeframeMatch: timeframeMatch,
			Reasoning:      reasoning(prefs, horizon, s, timeframeMatch, yieldMet),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out
}

func reasoning(prefs Preferences, horizon Horizon, s Strategy, timeframeMatch, yieldMet bool) string {
	parts := make([]string, 0, 3)

	switch diff := s.RiskTier - prefs.RiskTolerance; {
	case diff == 0:
		parts = append(parts, fmt.Sprintf("risk tier %d matches your tolerance", s.RiskTier))
	case diff > 0:
		parts = append(parts, fmt.Sprintf("risk tier %d is %d above your tolerance of %d", s.RiskTier, diff, prefs.RiskTolerance))
	default:
		parts = append(parts, fmt.Sprintf("risk tier %d is %d below your tolerance of %d", s.RiskTier, -diff, prefs.RiskTolerance))
	}

	switch {
	case s.TargetDuration == 0:
		parts = append(parts, "no fixed duration")
	case timeframeMatch:
		parts = append(parts, fmt.Sprintf("%d-day target fits a %s horizon", s.TargetDuration, horizon))
	default:
		parts = append(parts, fmt.Sprintf("%d-day target does not fit a %s horizon", s.TargetDuration, horizon))
	}

	if prefs.TargetYieldBps > 0 {
		verb := "meets"
		if !yieldMet {
			verb = "falls short of"
		}
		parts = append(parts, fmt.Sprintf("expected yield %.2f%% %s your %.2f%% target",
			s.ExpectedYield, verb, float64(prefs.TargetYieldBps)/100))
	}

	text := strings.Join(parts, "; ")
	return strings.ToUpper(text[:1]) + text[1:]
}
