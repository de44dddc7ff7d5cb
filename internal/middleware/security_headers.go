package middleware

import "github.com/gin-gonic/gin"

// SecurityHeadersMiddleware sets response headers for a JSON-only API.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()

		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		// trip and telemetry payloads are per-user
		headers.Set("Cache-Control", "no-store")

		c.Next()
	}
}
