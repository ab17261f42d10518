// Package handler exposes the latest computed snapshots over a small
// read-only HTTP API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"symmio/internal/repository"
)

type SnapshotHandler struct {
	Repo repository.Repository
}

func (h *SnapshotHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/snapshots")
	group.GET("/affiliate", h.affiliate)
	group.GET("/hedger", h.hedger)
	group.GET("/hedger-binance", h.hedgerBinance)
	group.GET("/liquidator", h.liquidator)
}

func (h *SnapshotHandler) affiliate(c *gin.Context) {
	tenant, name := c.Query("tenant"), c.Query("name")
	if tenant == "" || name == "" {
		respondError(c, http.StatusBadRequest, "tenant and name are required")
		return
	}
	snap, err := h.Repo.GetLatestAffiliateSnapshot(c.Request.Context(), tenant, name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		respondError(c, http.StatusNotFound, "snapshot not found")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SnapshotHandler) hedger(c *gin.Context) {
	tenant, hedger := c.Query("tenant"), c.Query("hedger")
	if tenant == "" || hedger == "" {
		respondError(c, http.StatusBadRequest, "tenant and hedger are required")
		return
	}
	snap, err := h.Repo.GetLatestHedgerSnapshot(c.Request.Context(), tenant, hedger)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		respondError(c, http.StatusNotFound, "snapshot not found")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SnapshotHandler) hedgerBinance(c *gin.Context) {
	tenant, hedger := c.Query("tenant"), c.Query("hedger")
	if tenant == "" || hedger == "" {
		respondError(c, http.StatusBadRequest, "tenant and hedger are required")
		return
	}
	snap, err := h.Repo.GetLatestHedgerBinanceSnapshot(c.Request.Context(), tenant, hedger)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		respondError(c, http.StatusNotFound, "snapshot not found")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SnapshotHandler) liquidator(c *gin.Context) {
	tenant := c.Query("tenant")
	if tenant == "" {
		respondError(c, http.StatusBadRequest, "tenant is required")
		return
	}
	snap, err := h.Repo.GetLatestLiquidatorSnapshot(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		respondError(c, http.StatusNotFound, "snapshot not found")
		return
	}
	c.JSON(http.StatusOK, snap)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
