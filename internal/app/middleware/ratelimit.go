package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidpech/tracelens/internal/infrastructure/ratelimit"
	"github.com/kidpech/tracelens/pkg/response"
)

// RateLimit throttles per client IP and, once authenticated, per subject.
// Limiter errors fail open.
func RateLimit(ipLimiter, subjectLimiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if ipLimiter != nil {
			info, err := ipLimiter.Allow(ctx, "ip:"+c.ClientIP())
			if err == nil {
				setHeaders(c, info)
				if !info.Allowed {
					response.TooManyRequests(c, info.Reset)
					c.Abort()
					return
				}
			}
		}
		subject := response.SubjectFromContext(c)
		if subjectLimiter != nil && subject != "" {
			info, err := subjectLimiter.Allow(ctx, "subject:"+subject)
			if err == nil {
				setHeaders(c, info)
				if !info.Allowed {
					response.TooManyRequests(c, info.Reset)
					c.Abort()
					return
				}
			}
		}
		c.Next()
	}
}

func setHeaders(c *gin.Context, info ratelimit.RateLimitInfo) {
	c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset.Unix(), 10))
	if !info.Allowed {
		reset := time.Until(info.Reset)
		if reset < 0 {
			reset = 0
		}
		c.Writer.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())))
	}
}
