package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"praxos/internal/strategy"
)

type generateRequest struct {
	RWATokens     []strategy.Token `json:"rwa_tokens" binding:"required,min=1,dive"`
	StrategyTypes []string         `json:"strategy_types"`
}

type recommendRequest struct {
	RiskTolerance     *int             `json:"user_risk_tolerance" binding:"omitempty,min=1,max=5"`
	InvestmentHorizon *int             `json:"investment_horizon_days" binding:"omitempty,min=0"`
	TargetYield       *int             `json:"target_yield_bps" binding:"omitempty,min=0"`
	AvailableTokens   []strategy.Token `json:"available_rwa_tokens" binding:"required,min=1,dive"`
}

type riskRequest struct {
	AssetAddress      string `json:"asset_address"`
	AssetType         string `json:"asset_type"`
	AnnualYield       int64  `json:"annual_yield" binding:"gte=0"`
	MaturityTimestamp int64  `json:"maturity_timestamp" binding:"gte=0"`
	RiskTier          *int   `json:"risk_tier" binding:"omitempty,min=1,max=5"`
}

type configRequest struct {
	StrategyID string `json:"strategy_id" binding:"required"`
	BaseAsset  string `json:"base_asset" binding:"required"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
}

func (s *Server) generateStrategies(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}

	sigs := strategy.SimulateAll(req.RWATokens, s.now())
	c.JSON(http.StatusOK, gin.H{"strategies": s.engine.Generate(sigs, req.StrategyTypes)})
}

func (s *Server) recommendStrategies(c *gin.Context) {
	var req recommendRequest
	if !bindJSON(c, &req) {
		return
	}

	prefs := strategy.Preferences{
		RiskTolerance:  intOr(req.RiskTolerance, strategy.DefaultRiskTolerance),
		HorizonDays:    intOr(req.InvestmentHorizon, strategy.DefaultHorizonDays),
		TargetYieldBps: intOr(req.TargetYield, strategy.DefaultTargetYieldBps),
	}
	sigs := strategy.SimulateAll(req.AvailableTokens, s.now())
	strategies := s.engine.Generate(sigs, nil)
	c.JSON(http.StatusOK, gin.H{"recommendations": strategy.Recommend(prefs, strategies)})
}

func (s *Server) analyzeRisk(c *gin.Context) {
	var req riskRequest
	if !bindJSON(c, &req) {
		return
	}

	sig := strategy.Simulate(strategy.Token{
		Address:           req.AssetAddress,
		AssetType:         req.AssetType,
		AnnualYield:       req.AnnualYield,
		MaturityTimestamp: req.MaturityTimestamp,
		RiskTier:          intOr(req.RiskTier, strategy.DefaultRiskTolerance),
	}, s.now())
	c.JSON(http.StatusOK, gin.H{"risk_signature": sig})
}

func (s *Server) deploymentConfig(c *gin.Context) {
	var req configRequest
	if !bindJSON(c, &req) {
		return
	}
	if !common.IsHexAddress(req.BaseAsset) {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid address: %s", req.BaseAsset))
		return
	}

	cfg, err := s.engine.DeploymentConfig(req.StrategyID, common.HexToAddress(req.BaseAsset), req.Name, req.Symbol)
	if errors.Is(err, strategy.ErrStrategyNotFound) {
		writeError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
