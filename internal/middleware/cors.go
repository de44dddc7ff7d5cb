package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/config"
)

func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		AllowWebSockets:  true,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	}

	// gin-contrib/cors rejects "*" as a literal origin; it must be expressed
	// as AllowAllOrigins, which in turn cannot be combined with credentials.
	if allowsAnyOrigin(cfg.AllowedOrigins) && !cfg.AllowCredentials {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = withoutWildcard(cfg.AllowedOrigins)
	}

	return cors.New(corsConfig)
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

func withoutWildcard(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "*" {
			out = append(out, o)
		}
	}
	return out
}
