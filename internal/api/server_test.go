package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxos/internal/chain"
	"praxos/internal/contracts"
	"praxos/internal/metadata"
	"praxos/internal/model"
)

var (
	testNow    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vaultAddr  = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	userAddr   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bondToken  = "0x1111111111111111111111111111111111111111"
	estate     = "0x2222222222222222222222222222222222222222"
	startupTkn = "0x3333333333333333333333333333333333333333"
)

type fakeReader struct {
	registry  *contracts.Registry
	infos     []model.VaultInfo
	listErr   error
	listCalls int
}

func (f *fakeReader) Registry() *contracts.Registry { return f.registry }

func (f *fakeReader) Addresses(context.Context) ([]common.Address, error) {
	out := make([]common.Address, len(f.infos))
	for i, info := range f.infos {
		out[i] = info.Address
	}
	return out, nil
}

func (f *fakeReader) List(context.Context) ([]model.VaultInfo, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.infos, nil
}

func (f *fakeReader) Info(_ context.Context, vault common.Address) (model.VaultInfo, error) {
	for _, info := range f.infos {
		if info.Address == vault {
			return info, nil
		}
	}
	return model.VaultInfo{}, errors.New("execution reverted")
}

func (f *fakeReader) Balance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(2_500_000), nil
}

func (f *fakeReader) Allocations(context.Context, common.Address) ([]model.Allocation, error) {
	return []model.Allocation{{Asset: bondToken, WeightBps: 10000}}, nil
}

func (f *fakeReader) Decimals(context.Context, common.Address) uint8 { return 6 }

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func sampleVault() model.VaultInfo {
	return model.VaultInfo{
		Address:        vaultAddr,
		Name:           "Bond Vault",
		Symbol:         "BOND",
		Strategy:       "bond-ladder",
		RiskTier:       2,
		TargetDuration: big.NewInt(86400),
		AssetCount:     big.NewInt(1),
		TotalAssets:    big.NewInt(1_500_000),
		TotalSupply:    big.NewInt(1_000_000),
	}
}

func newTestServer(t *testing.T, reader *fakeReader) (*Server, *mapCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := &mapCache{data: make(map[string][]byte)}
	s := NewServer(Options{Network: chain.RaylsDevnet}, reader, metadata.NewMemoryStore(), c, nil)
	s.now = func() time.Time { return testNow }
	return s, c
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sampleTokens() []map[string]interface{} {
	day := int64(86400)
	return []map[string]interface{}{
		{"address": bondToken, "asset_type": "corporate-bond", "annual_yield": 500, "maturity_timestamp": testNow.Unix() + 365*day, "risk_tier": 2},
		{"address": estate, "asset_type": "real-estate", "annual_yield": 700, "maturity_timestamp": testNow.Unix() + 1825*day, "risk_tier": 3},
		{"address": startupTkn, "asset_type": "startup-fund", "annual_yield": 1500, "risk_tier": 5},
	}
}

func TestHealthAndMiddleware(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = do(t, s, http.MethodOptions, "/api/vaults", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNetworkAndContracts(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})

	rec := do(t, s, http.MethodGet, "/api/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 123123, decode(t, rec)["chainId"])

	rec = do(t, s, http.MethodGet, "/api/contracts", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	reg := contracts.NewRegistry(&contracts.ContractsData{
		DeploymentID: "dep-1",
		NetworkName:  "Rayls Testnet",
		ChainID:      "123123",
		Contracts: map[string]contracts.ContractData{
			"VaultFactory": {Name: "VaultFactory", Address: "0xF0", ExplorerURL: "https://x/address/0xF0", ABIRaw: json.RawMessage(`[]`)},
		},
	})
	s, _ = newTestServer(t, &fakeReader{registry: reg})
	rec = do(t, s, http.MethodGet, "/api/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "dep-1", body["deploymentId"])
	factory := body["contracts"].(map[string]interface{})["VaultFactory"].(map[string]interface{})
	assert.Equal(t, "0xF0", factory["address"])
	assert.NotContains(t, factory, "abiRaw")
}

func TestListVaultsCachesAndOverlaysMetadata(t *testing.T) {
	reader := &fakeReader{infos: []model.VaultInfo{sampleVault()}}
	s, c := newTestServer(t, reader)

	rec := do(t, s, http.MethodGet, "/api/vaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vaults := decode(t, rec)["vaults"].([]interface{})
	require.Len(t, vaults, 1)
	first := vaults[0].(map[string]interface{})
	assert.Equal(t, vaultAddr.Hex(), first["id"])
	assert.Equal(t, 6.0, first["apr"])
	assert.Contains(t, c.data, vaultListKey)

	rec = do(t, s, http.MethodPost, "/api/vaults/"+vaultAddr.Hex()+"/metadata", map[string]interface{}{
		"description": "Short duration bonds",
		"apr":         4.25,
		"isNew":       false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/vaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first = decode(t, rec)["vaults"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Short duration bonds", first["description"])
	assert.Equal(t, 4.25, first["apr"])
	assert.Equal(t, false, first["isNew"])
	assert.Equal(t, 1, reader.listCalls, "second listing should be served from cache")
}

func TestListVaultsErrors(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{listErr: contracts.ErrNoDeployment})
	rec := do(t, s, http.MethodGet, "/api/vaults", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s, _ = newTestServer(t, &fakeReader{listErr: errors.New("dial tcp: connection refused")})
	rec = do(t, s, http.MethodGet, "/api/vaults", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "connection refused")
}

func TestVaultDetailBalanceAllocations(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{infos: []model.VaultInfo{sampleVault()}})

	rec := do(t, s, http.MethodGet, "/api/vaults/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/vaults/"+vaultAddr.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "1.5", body["totalAssetsFormatted"])
	assert.Equal(t, "1500000.00", body["sharePrice"])
	assert.Equal(t, "1500000", body["vault"].(map[string]interface{})["totalAssets"])

	rec = do(t, s, http.MethodGet, "/api/vaults/"+vaultAddr.Hex()+"/balance/"+userAddr.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "2500000", body["shares"])
	assert.Equal(t, "2.5", body["formatted"])

	rec = do(t, s, http.MethodGet, "/api/vaults/"+vaultAddr.Hex()+"/allocations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	allocs := decode(t, rec)["allocations"].([]interface{})
	require.Len(t, allocs, 1)
	assert.EqualValues(t, 10000, allocs[0].(map[string]interface{})["weightBps"])
}

func TestMetadataEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})
	path := "/api/vaults/" + vaultAddr.Hex() + "/metadata"

	rec := do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Vault metadata not found", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, path, map[string]interface{}{"description": "d", "apr": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, path, map[string]interface{}{"description": "d", "apr": 5.5, "isNew": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 5.5, body["apr"])
	assert.Equal(t, []interface{}{}, body["assets"])

	rec = do(t, s, http.MethodPost, "/api/vaults/metadata/batch", map[string]interface{}{
		"vaultAddresses": []string{vaultAddr.Hex(), userAddr.Hex()},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	batch := decode(t, rec)
	assert.Contains(t, batch, vaultAddr.Hex())
	assert.NotContains(t, batch, userAddr.Hex())

	rec = do(t, s, http.MethodPost, "/api/vaults/metadata/batch", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "vaultAddresses is required", decode(t, rec)["error"])
}

func TestGenerateStrategies(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})

	rec := do(t, s, http.MethodPost, "/api/vaults/generate", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rwa_tokens is required", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/api/vaults/generate", map[string]interface{}{
		"rwa_tokens": []map[string]interface{}{{"address": bondToken, "asset_type": "corporate-bond"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rwa_tokens[0].risk_tier is required", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/api/vaults/generate", map[string]interface{}{"rwa_tokens": sampleTokens()})
	require.Equal(t, http.StatusOK, rec.Code)
	strategies := decode(t, rec)["strategies"].([]interface{})
	require.Len(t, strategies, 2)
	assert.Equal(t, "real-estate-heavy", strategies[0].(map[string]interface{})["strategy_id"])
	assert.Equal(t, "startup-exposure", strategies[1].(map[string]interface{})["strategy_id"])

	rec = do(t, s, http.MethodPost, "/api/vaults/generate", map[string]interface{}{
		"rwa_tokens":     sampleTokens(),
		"strategy_types": []string{"startup-exposure", "unknown"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["strategies"], 1)
}

func TestRecommendStrategies(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})

	rec := do(t, s, http.MethodPost, "/api/vaults/recommend", map[string]interface{}{
		"user_risk_tolerance":  9,
		"available_rwa_tokens": sampleTokens(),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_risk_tolerance must satisfy max=5", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/api/vaults/recommend", map[string]interface{}{
		"available_rwa_tokens": sampleTokens(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode(t, rec)["recommendations"].([]interface{})
	require.Len(t, recs, 2)
	best := recs[0].(map[string]interface{})
	assert.Equal(t, "real-estate-heavy", best["strategy_id"])
	assert.InDelta(t, 0.8, best["match_score"], 1e-9)
	assert.Equal(t, estate, best["vault_address"])
	assert.InDelta(t, 0.75, recs[1].(map[string]interface{})["match_score"], 1e-9)

	rec = do(t, s, http.MethodPost, "/api/vaults/recommend", map[string]interface{}{
		"user_risk_tolerance":     1,
		"investment_horizon_days": 30,
		"target_yield_bps":        2000,
		"available_rwa_tokens":    sampleTokens(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	recs = decode(t, rec)["recommendations"].([]interface{})
	require.Len(t, recs, 2)
	best = recs[0].(map[string]interface{})
	assert.Equal(t, "real-estate-heavy", best["strategy_id"])
	assert.InDelta(t, 0.1, best["match_score"], 1e-9)
	assert.InDelta(t, 0.05, recs[1].(map[string]interface{})["match_score"], 1e-9)
}

func TestAnalyzeRisk(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})

	rec := do(t, s, http.MethodPost, "/api/risk/analyze", map[string]interface{}{"annual_yield": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "annual_yield must satisfy gte=0", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/api/risk/analyze", map[string]interface{}{"annual_yield": 300})
	require.Equal(t, http.StatusOK, rec.Code)
	bare := decode(t, rec)["risk_signature"].(map[string]interface{})
	assert.Equal(t, "", bare["asset_address"])
	assert.EqualValues(t, 3, bare["risk_tier"])
	assert.InDelta(t, 0.15, bare["volatility"], 1e-9)
	assert.InDelta(t, 0.5, bare["liquidity_score"], 1e-9)

	rec = do(t, s, http.MethodPost, "/api/risk/analyze", map[string]interface{}{
		"asset_address": estate,
		"asset_type":    "real-estate",
		"annual_yield":  700,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	sig := decode(t, rec)["risk_signature"].(map[string]interface{})
	assert.EqualValues(t, 3, sig["risk_tier"])
	assert.EqualValues(t, 7, sig["annual_yield"])
	assert.EqualValues(t, 70, sig["credit_score"])
}

func TestDeploymentConfig(t *testing.T) {
	s, _ := newTestServer(t, &fakeReader{})
	usdc := "0x00000000000000000000000000000000000000D1"

	rec := do(t, s, http.MethodPost, "/api/vaults/config", map[string]interface{}{
		"strategy_id": "real-estate-heavy",
		"base_asset":  usdc,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/vaults/generate", map[string]interface{}{"rwa_tokens": sampleTokens()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/vaults/config", map[string]interface{}{
		"strategy_id": "real-estate-heavy",
		"base_asset":  usdc,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode(t, rec)["config"].(map[string]interface{})
	assert.Equal(t, "REALESTATEHEAVY", cfg["symbol"])
	assert.Equal(t, "real-estate-heavy", cfg["strategy"])
	assert.EqualValues(t, 1825*86400, cfg["targetDuration"])
}
