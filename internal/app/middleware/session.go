package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
	"github.com/kidpech/tracelens/internal/tracelens"
)

// SessionTracking installs the request-scoped logger and, for tracked paths,
// tags the request context with the resolved session so its log events are
// captured. A nil resolver disables tagging.
func SessionTracking(resolver *tracelens.Resolver, paths *PathMatcher, base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := logging.WithRequestID(base, RequestIDFromContext(c))
		if resolver != nil && paths.Tracked(c.Request.URL.Path) {
			if id, ok := resolver.Resolve(c.Request); ok {
				ctx = tracelens.WithSessionID(ctx, id)
				c.Set("session_id", id)
			}
		}
		logger = tracelens.ContextLogger(ctx, logger)
		c.Request = c.Request.WithContext(logging.WithContext(ctx, logger))
		c.Next()
	}
}
