package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smart-helmet-backend/internal/usecase/alert"
	"smart-helmet-backend/pkg/utils"
)

type AlertHandler struct {
	service *alert.Service
}

func NewAlertHandler(service *alert.Service) *AlertHandler {
	return &AlertHandler{service: service}
}

func (h *AlertHandler) RegisterRoutes(router *gin.RouterGroup) {
	alerts := router.Group("/alerts")
	{
		alerts.GET("", h.ListAlerts)
		alerts.POST("/:id/ack", h.AcknowledgeAlert)
	}
}

func (h *AlertHandler) ListAlerts(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req alert.ListAlertsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	alerts, err := h.service.ListAlerts(c.Request.Context(), userID, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alerts retrieved successfully", alerts)
}

func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	a, err := h.service.AcknowledgeAlert(c.Request.Context(), userID, alertID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Alert resolved", a)
}
