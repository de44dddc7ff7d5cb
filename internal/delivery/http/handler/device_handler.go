package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/usecase/device"
	"smart-helmet-backend/pkg/utils"
)

type DeviceHandler struct {
	service *device.Service
}

func NewDeviceHandler(service *device.Service) *DeviceHandler {
	return &DeviceHandler{service: service}
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.POST("", h.RegisterDevice)
		devices.GET("", h.ListDevices)
	}
}

func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req device.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.ModelName != nil {
		sanitized := utils.SanitizeString(*req.ModelName)
		req.ModelName = &sanitized
	}

	registered, err := h.service.RegisterDevice(c.Request.Context(), identityFromContext(c, userID), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Device registered successfully", registered)
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	devices, err := h.service.ListDevices(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", devices)
}
