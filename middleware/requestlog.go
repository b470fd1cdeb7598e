package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"jobpilot/utils"
)

// RequestLogger emits one structured line per request.
func RequestLogger() gin.HandlerFunc {
	logger := utils.NewLogger("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logger.Warn("request failed", entry)
			return
		}
		logger.Info("request", entry)
	}
}
