package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"praxos/internal/cache"
	"praxos/internal/model"
	"praxos/internal/vault"
)

const vaultListKey = "vaults:list"

func (s *Server) listVaults(c *gin.Context) {
	ctx := c.Request.Context()

	views, err := s.cachedViews(ctx)
	if err != nil {
		writeReadError(c, err)
		return
	}
	s.overlayMetadata(ctx, views)
	c.JSON(http.StatusOK, gin.H{"vaults": views})
}

// cachedViews returns the on-chain listing, served from cache within the TTL.
func (s *Server) cachedViews(ctx context.Context) ([]vault.View, error) {
	var views []vault.View
	if s.cache != nil {
		hit, err := cache.GetJSON(ctx, s.cache, vaultListKey, &views)
		if err != nil {
			s.logger.Warn("vault cache read", zap.Error(err))
		} else if hit {
			return views, nil
		}
	}

	infos, err := s.reader.List(ctx)
	if err != nil {
		return nil, err
	}
	views = vault.ToViews(infos)

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, vaultListKey, views, s.opts.CacheTTL); err != nil {
			s.logger.Warn("vault cache write", zap.Error(err))
		}
	}
	return views, nil
}

// overlayMetadata replaces derived presentation fields with stored metadata.
func (s *Server) overlayMetadata(ctx context.Context, views []vault.View) {
	if len(views) == 0 {
		return
	}
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	found, err := s.metadata.GetBatch(ctx, ids)
	if err != nil {
		s.logger.Warn("vault metadata overlay", zap.Error(err))
		return
	}

	for i := range views {
		meta, ok := found[views[i].ID]
		if !ok {
			continue
		}
		if meta.Description != "" {
			views[i].Description = meta.Description
		}
		if meta.APR > 0 {
			views[i].APR = meta.APR
		}
		views[i].IsNew = meta.IsNew
		if len(meta.Assets) > 0 {
			views[i].Assets = toViewAssets(meta.Assets)
		}
	}
}

func toViewAssets(entries []model.AssetEntry) []vault.Asset {
	out := make([]vault.Asset, 0, len(entries))
	for _, e := range entries {
		out = append(out, vault.Asset{
			Name:        e.Name,
			Type:        e.Type,
			Provider:    e.Provider,
			Country:     e.Country,
			Rating:      e.Rating,
			Description: e.Description,
		})
	}
	return out
}

func (s *Server) getVault(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	info, err := s.reader.Info(ctx, addr)
	if err != nil {
		writeReadError(c, err)
		return
	}

	index := 0
	if addrs, err := s.reader.Addresses(ctx); err == nil {
		for i, a := range addrs {
			if a == addr {
				index = i
				break
			}
		}
	}
	views := []vault.View{vault.ToView(info, index)}
	s.overlayMetadata(ctx, views)

	c.JSON(http.StatusOK, gin.H{
		"vault":                info,
		"view":                 views[0],
		"totalAssetsFormatted": vault.TotalAssetsValue(info),
		"sharePrice":           vault.SharePrice(info),
		"explorerUrl":          s.opts.Network.AddressURL(addr.Hex()),
	})
}

func (s *Server) vaultBalance(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	user, ok := pathAddress(c, "user")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	shares, err := s.reader.Balance(ctx, addr, user)
	if err != nil {
		writeReadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vault":     addr.Hex(),
		"user":      user.Hex(),
		"shares":    shares.String(),
		"formatted": vault.FormatUnits(shares, s.reader.Decimals(ctx, addr)),
	})
}

func (s *Server) vaultAllocations(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}

	allocations, err := s.reader.Allocations(c.Request.Context(), addr)
	if err != nil {
		writeReadError(c, err)
		return
	}
	if allocations == nil {
		allocations = []model.Allocation{}
	}
	c.JSON(http.StatusOK, gin.H{"vault": addr.Hex(), "allocations": allocations})
}
