package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/auth"
	"smart-helmet-backend/internal/logger"
	"smart-helmet-backend/pkg/utils"
)

const (
	UserIDKey = "userID"
	EmailKey  = "email"
	NameKey   = "name"
)

// TokenVerifier resolves a bearer credential to a principal.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		principal, err := verifier.Verify(parts[1])
		if err != nil {
			message := "Invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				message = "Authorization token required"
			}
			logger.WithRequestID(GetRequestID(c)).Debug("Rejected bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			utils.ErrorResponse(c, http.StatusUnauthorized, message)
			c.Abort()
			return
		}

		c.Set(UserIDKey, principal.UserID)
		c.Set(EmailKey, principal.Email)
		c.Set(NameKey, principal.Name)

		c.Next()
	}
}

// CurrentUserID returns the authenticated user set by AuthMiddleware.
func CurrentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func stringFromContext(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CurrentEmail and CurrentName return optional profile claims of the caller.
func CurrentEmail(c *gin.Context) string { return stringFromContext(c, EmailKey) }
func CurrentName(c *gin.Context) string  { return stringFromContext(c, NameKey) }
