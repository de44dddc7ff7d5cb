package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/logger"
	"smart-helmet-backend/internal/middleware"
	appErrors "smart-helmet-backend/pkg/errors"
	"smart-helmet-backend/pkg/utils"
)

func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, appErrors.ErrInvalidToken),
		errors.Is(err, appErrors.ErrUnauthorized):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, appErrors.ErrInsufficientPermissions):
		utils.ErrorResponse(c, http.StatusForbidden, err.Error())
		return
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.CodeValidation:
			utils.ErrorResponse(c, http.StatusBadRequest, appErr.Error())
		case appErrors.CodeNotFound:
			utils.ErrorResponse(c, http.StatusNotFound, appErr.Message)
		case appErrors.CodeForbidden:
			utils.ErrorResponse(c, http.StatusForbidden, appErr.Message)
		case appErrors.CodeConflict:
			utils.ErrorResponse(c, http.StatusConflict, appErr.Message)
		case appErrors.CodeUnavailable:
			utils.ErrorResponse(c, http.StatusServiceUnavailable, appErr.Error())
		default:
			utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
		}
		return
	}

	logger.Error("Internal server error",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
}

// currentIdentity returns the authenticated caller or writes a 401.
func currentIdentity(c *gin.Context) (string, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}
