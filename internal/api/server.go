package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"praxos/internal/cache"
	"praxos/internal/chain"
	"praxos/internal/contracts"
	"praxos/internal/metadata"
	"praxos/internal/model"
	"praxos/internal/strategy"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "Praxos AI Backend"

const shutdownTimeout = 5 * time.Second

// VaultReader is the on-chain read surface the API serves from; *vault.Reader satisfies it.
type VaultReader interface {
	Registry() *contracts.Registry
	Addresses(ctx context.Context) ([]common.Address, error)
	List(ctx context.Context) ([]model.VaultInfo, error)
	Info(ctx context.Context, vault common.Address) (model.VaultInfo, error)
	Balance(ctx context.Context, vault, user common.Address) (*big.Int, error)
	Allocations(ctx context.Context, vault common.Address) ([]model.Allocation, error)
	Decimals(ctx context.Context, token common.Address) uint8
}

// Options configures the server.
type Options struct {
	Network  chain.Network
	CacheTTL time.Duration
}

// Server exposes vault reads, metadata and strategy generation over HTTP.
type Server struct {
	opts     Options
	reader   VaultReader
	metadata metadata.Store
	cache    cache.Cache
	engine   *strategy.Engine
	logger   *zap.Logger
	now      func() time.Time
	router   *gin.Engine
}

// NewServer wires the routes. A nil cache disables listing caching.
func NewServer(opts Options, reader VaultReader, store metadata.Store, c cache.Cache, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if store == nil {
		store = metadata.NewMemoryStore()
	}
	registerValidation()

	s := &Server{
		opts:     opts,
		reader:   reader,
		metadata: store,
		cache:    c,
		engine:   strategy.NewEngine(),
		logger:   logger,
		now:      time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.logger), RequestID(), AccessLog(s.logger), Cors())

	r.GET("/health", s.health)

	g := r.Group("/api")
	g.GET("/network", s.network)
	g.GET("/contracts", s.contracts)

	g.GET("/vaults", s.listVaults)
	g.GET("/vaults/:address", s.getVault)
	g.GET("/vaults/:address/balance/:user", s.vaultBalance)
	g.GET("/vaults/:address/allocations", s.vaultAllocations)
	g.GET("/vaults/:address/metadata", s.getMetadata)
	g.POST("/vaults/:address/metadata", s.putMetadata)
	g.POST("/vaults/metadata/batch", s.batchMetadata)

	g.POST("/vaults/generate", s.generateStrategies)
	g.POST("/vaults/recommend", s.recommendStrategies)
	g.POST("/vaults/config", s.deploymentConfig)
	g.POST("/risk/analyze", s.analyzeRisk)

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": ServiceName})
}

func (s *Server) network(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Network)
}

type contractSummary struct {
	Address     string `json:"address"`
	ExplorerURL string `json:"explorerUrl"`
}

func (s *Server) contracts(c *gin.Context) {
	data := s.reader.Registry().Data()
	if data == nil {
		writeError(c, http.StatusServiceUnavailable, contracts.ErrNoDeployment)
		return
	}

	summary := make(map[string]contractSummary, len(data.Contracts))
	for name, contract := range data.Contracts {
		summary[name] = contractSummary{Address: contract.Address, ExplorerURL: contract.ExplorerURL}
	}
	c.JSON(http.StatusOK, gin.H{
		"deploymentId":   data.DeploymentID,
		"deployedBy":     data.DeployedBy,
		"networkName":    data.NetworkName,
		"chainId":        data.ChainID,
		"explorerUrl":    s.reader.Registry().ExplorerURL(),
		"deployedAt":     data.DeployedAt,
		"deploymentType": data.DeploymentType,
		"contracts":      summary,
		"configuration":  data.Configuration,
	})
}
