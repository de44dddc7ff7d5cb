package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/middleware"
	"smart-helmet-backend/internal/usecase/user"
	"smart-helmet-backend/pkg/utils"
)

type UserHandler struct {
	service *user.Service
}

func NewUserHandler(service *user.Service) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterProfileRoutes(router *gin.RouterGroup) {
	profile := router.Group("/users/me")
	{
		profile.GET("", h.GetProfile)
		profile.PATCH("", h.UpdateProfile)
	}
}

func identityFromContext(c *gin.Context, userID string) user.Identity {
	return user.Identity{
		UserID: userID,
		Email:  middleware.CurrentEmail(c),
		Name:   middleware.CurrentName(c),
	}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), identityFromContext(c, userID))
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.DisplayName != nil {
		sanitized := utils.SanitizeString(*req.DisplayName)
		req.DisplayName = &sanitized
	}
	if req.Email != nil {
		sanitized := utils.SanitizeEmail(*req.Email)
		req.Email = &sanitized
	}
	if req.PhoneNumber != nil {
		sanitized := utils.SanitizePhone(*req.PhoneNumber)
		req.PhoneNumber = &sanitized
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), identityFromContext(c, userID), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile updated successfully", profile)
}
