package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/tracelens/internal/infrastructure/auth"
	"github.com/kidpech/tracelens/pkg/response"
)

// AuthMiddleware validates JWT bearer tokens.
func AuthMiddleware(manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := manager.ParseAccessToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set("subject", claims.Subject)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// AdminOnly ensures role based access.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("user_role")
		role, _ := roleVal.(string)
		if !exists || role != "admin" {
			response.Forbidden(c, "admin only")
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
