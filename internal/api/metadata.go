package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"praxos/internal/metadata"
	"praxos/internal/model"
)

type metadataRequest struct {
	Description string             `json:"description"`
	APR         float64            `json:"apr" binding:"gte=0"`
	IsNew       bool               `json:"isNew"`
	Assets      []model.AssetEntry `json:"assets"`
}

type batchMetadataRequest struct {
	VaultAddresses []string `json:"vaultAddresses" binding:"required"`
}

func (s *Server) getMetadata(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}

	meta, err := s.metadata.Get(c.Request.Context(), addr.Hex())
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			writeReadError(c, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) putMetadata(c *gin.Context) {
	if _, ok := pathAddress(c, "address"); !ok {
		return
	}
	raw := c.Param("address")

	var req metadataRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Assets == nil {
		req.Assets = []model.AssetEntry{}
	}

	meta := model.VaultMetadata{
		VaultAddress: raw,
		Description:  req.Description,
		APR:          req.APR,
		IsNew:        req.IsNew,
		Assets:       req.Assets,
	}
	if err := s.metadata.Put(c.Request.Context(), meta); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "vaultAddress": raw})
}

func (s *Server) batchMetadata(c *gin.Context) {
	var req batchMetadataRequest
	if !bindJSON(c, &req) {
		return
	}

	found, err := s.metadata.GetBatch(c.Request.Context(), req.VaultAddresses)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, found)
}
