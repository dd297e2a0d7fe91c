package strategy

import (
	"strings"
	"testing"
)

func TestHorizonFor(t *testing.T) {
	cases := map[int]Horizon{
		0:    HorizonShort,
		365:  HorizonShort,
		366:  HorizonMedium,
		1095: HorizonMedium,
		1096: HorizonLong,
	}
	for days, want := range cases {
		if got := HorizonFor(days); got != want {
			t.Fatalf("HorizonFor(%d) = %s, want %s", days, got, want)
		}
	}
}

func TestRecommend(t *testing.T) {
	strategies := NewEngine().Generate(SimulateAll(sampleTokens(), testNow), nil)
	prefs := Preferences{RiskTolerance: 3, HorizonDays: 365, TargetYieldBps: 600}

	got := Recommend(prefs, strategies)
	if len(got) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(got))
	}

	first := got[0]
	if first.StrategyID != "real-estate-heavy" || !approx(first.MatchScore, 0.8) || first.TimeframeMatch {
		t.Fatalf("first recommendation mismatch: %+v", first)
	}
	if first.VaultAddress != estateAddr {
		t.Fatalf("vault address should be the first asset: %s", first.VaultAddress)
	}
	if !strings.Contains(first.Reasoning, "does not fit a short-term horizon") {
		t.Fatalf("reasoning mismatch: %s", first.Reasoning)
	}

	second := got[1]
	if second.StrategyID != "startup-exposure" || !approx(second.MatchScore, 0.75) || !second.TimeframeMatch {
		t.Fatalf("second recommendation mismatch: %+v", second)
	}
	if !strings.HasPrefix(second.Reasoning, "Risk tier 4 is 1 above your tolerance of 3") {
		t.Fatalf("reasoning mismatch: %s", second.Reasoning)
	}
}

func TestRecommendPenaltiesAndClamp(t *testing.T) {
	strategies := []Strategy{
		{ID: "low", Name: "Low", RiskTier: 1, TargetDuration: 3650, ExpectedYield: 2},
		{ID: "empty", Name: "Empty", RiskTier: 5, ExpectedYield: 12},
	}
	got := Recommend(Preferences{RiskTolerance: 5, HorizonDays: 30, TargetYieldBps: 800}, strategies)

	if got[0].StrategyID != "empty" || got[0].MatchScore != 1 || got[0].VaultAddress != "0x0" {
		t.Fatalf("best recommendation mismatch: %+v", got[0])
	}
	if got[1].MatchScore != 0 {
		t.Fatalf("score should clamp at 0, got %v", got[1].MatchScore)
	}
	if !strings.Contains(got[1].Reasoning, "falls short of your 8.00% target") {
		t.Fatalf("reasoning mismatch: %s", got[1].Reasoning)
	}
}
