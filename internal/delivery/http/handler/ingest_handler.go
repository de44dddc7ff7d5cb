package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/pkg/utils"
)

// StatsSource reports the ingestion pipeline's counters.
type StatsSource interface {
	Stats() ingestion.Stats
}

type IngestHandler struct {
	stats StatsSource
}

func NewIngestHandler(stats StatsSource) *IngestHandler {
	return &IngestHandler{stats: stats}
}

func (h *IngestHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ingest/stats", h.GetStats)
}

func (h *IngestHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Ingestion stats retrieved successfully", h.stats.Stats())
}
