package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smart-helmet-backend/internal/usecase/trip"
	"smart-helmet-backend/pkg/utils"
)

type TripHandler struct {
	service *trip.Service
}

func NewTripHandler(service *trip.Service) *TripHandler {
	return &TripHandler{service: service}
}

func (h *TripHandler) RegisterRoutes(router *gin.RouterGroup) {
	trips := router.Group("/trips")
	{
		trips.GET("", h.ListTrips)
		trips.GET("/:id", h.GetTrip)
		trips.GET("/:id/route", h.GetRoute)
		trips.GET("/:id/metrics", h.GetMetrics)
		trips.POST("/:id/cancel", h.CancelTrip)
	}
}

func tripIDParam(c *gin.Context) (uuid.UUID, bool) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid trip ID")
		return uuid.Nil, false
	}
	return tripID, true
}

func bindPage(c *gin.Context) (*trip.PageRequest, bool) {
	var page trip.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return nil, false
	}
	return &page, true
}

func (h *TripHandler) ListTrips(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	trips, err := h.service.ListTrips(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trips retrieved successfully", trips)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.GetTrip(c.Request.Context(), userID, tripID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip retrieved successfully", t)
}

func (h *TripHandler) GetRoute(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	route, err := h.service.GetRoute(c.Request.Context(), userID, tripID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Route retrieved successfully", route)
}

func (h *TripHandler) GetMetrics(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	metrics, err := h.service.GetMetrics(c.Request.Context(), userID, tripID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip metrics retrieved successfully", metrics)
}

func (h *TripHandler) CancelTrip(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.CancelTrip(c.Request.Context(), userID, tripID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "Trip cancel accepted", t)
}
