package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smart-helmet-backend/internal/config"
	"smart-helmet-backend/internal/delivery/http/handler"
	"smart-helmet-backend/internal/delivery/ws"
	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/internal/logger"
	"smart-helmet-backend/internal/metrics"
	"smart-helmet-backend/internal/middleware"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the wired components the HTTP surface exposes.
type Dependencies struct {
	DB       HealthChecker
	Verifier middleware.TokenVerifier
	Ingest   *ingestion.Service
	Hub      *ingestion.Hub
	Metrics  *metrics.Metrics

	UserHandler   *handler.UserHandler
	DeviceHandler *handler.DeviceHandler
	TripHandler   *handler.TripHandler
	AlertHandler  *handler.AlertHandler
}

func SetupRoutes(cfg *config.Config, deps *Dependencies) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// request ID, logging, metrics, security headers, CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware("/health", "/metrics"))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst, "/ws/", "/health", "/metrics"))

	router.GET("/health", healthHandler(deps))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	ws.NewIngestHandler(deps.Ingest, ws.IngestOptions{
		MaxFrameBytes:   cfg.Ingest.MaxFrameBytes,
		FramesPerSecond: cfg.Ingest.DeviceRPS,
		Burst:           cfg.Ingest.DeviceBurst,
	}).RegisterRoutes(router)
	ws.NewStreamHandler(deps.Hub, deps.Verifier, cfg.Stream.SendBuffer, cfg.Stream.PingInterval).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(deps.Verifier))
	{
		deps.UserHandler.RegisterProfileRoutes(v1)
		deps.DeviceHandler.RegisterRoutes(v1)
		deps.TripHandler.RegisterRoutes(v1)
		deps.AlertHandler.RegisterRoutes(v1)
		handler.NewIngestHandler(deps.Ingest).RegisterRoutes(v1)
	}

	logger.Info("All routes initialized")
	return router
}

func healthHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		stats := deps.Ingest.Stats()
		body := gin.H{
			"queue_depth":    stats.QueueDepth,
			"queue_capacity": stats.QueueCapacity,
			"active_trips":   stats.ActiveTrips,
			"viewers":        deps.Hub.Total(),
		}

		if err := deps.DB.Health(ctx); err != nil {
			body["status"] = "unhealthy"
			body["message"] = "Database connection failed"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}

		body["status"] = "healthy"
		body["message"] = "Service is running"
		c.JSON(http.StatusOK, body)
	}
}
