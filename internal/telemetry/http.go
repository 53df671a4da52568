package telemetry

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// GinLogger logs each request start and finish with slog.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		slog.InfoContext(c.Request.Context(), "http: started call",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		c.Next()

		slog.InfoContext(c.Request.Context(), "http: finished call",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
