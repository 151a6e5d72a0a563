package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
	"github.com/kidpech/tracelens/internal/infrastructure/monitoring"
)

// RequestLogger logs request info and records metrics. It logs through the
// request-scoped logger, so the summary line lands in the session's buffer
// too.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logging.FromContext(c.Request.Context()).Named("http").Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
		monitoring.ObserveRequest(path, c.Request.Method, strconv.Itoa(status), latency.Seconds())
	}
}
