package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/app/diagnostics"
	"github.com/kidpech/tracelens/internal/app/middleware"
	"github.com/kidpech/tracelens/internal/config"
	"github.com/kidpech/tracelens/internal/demo/mail"
	"github.com/kidpech/tracelens/internal/demo/payment"
	"github.com/kidpech/tracelens/internal/demo/probe"
	"github.com/kidpech/tracelens/internal/infrastructure/auth"
	"github.com/kidpech/tracelens/internal/infrastructure/ratelimit"
	"github.com/kidpech/tracelens/internal/tracelens"
)

// RouterDeps aggregates HTTP dependencies. Diagnostics and Resolver are nil
// when session log capture is disabled.
type RouterDeps struct {
	Config         *config.Config
	Diagnostics    *diagnostics.Handler
	Resolver       *tracelens.Resolver
	PaymentHandler *payment.Handler
	MailHandler    *mail.Handler
	ProbeHandler   *probe.Handler
	AuthManager    *auth.Manager
	Logger         *zap.Logger
	IPLimiter      ratelimit.Limiter
	SubjectLimiter ratelimit.Limiter
}

// NewRouter builds the gin engine.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if deps.Config != nil {
		r.Use(middleware.CORS(deps.Config.Cors))
	}

	var paths *middleware.PathMatcher
	if deps.Config != nil {
		paths = middleware.NewPathMatcher(deps.Config.TraceLens.IncludePatterns, deps.Config.TraceLens.ExcludePatterns)
	}
	r.Use(middleware.SessionTracking(deps.Resolver, paths, deps.Logger))
	r.Use(middleware.RequestLogger())

	if deps.Config == nil || deps.Config.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if deps.Diagnostics != nil {
		endpoint := "/trace-lens/logs"
		if deps.Config != nil {
			endpoint = deps.Config.TraceLens.EndpointPath
		}
		logs := r.Group(endpoint)
		if deps.Config == nil || deps.Config.RateLimit.Enabled {
			logs.Use(middleware.RateLimit(deps.IPLimiter, nil))
		}
		deps.Diagnostics.RegisterPublic(logs)

		if deps.AuthManager.Enabled() {
			admin := logs.Group("", middleware.AuthMiddleware(deps.AuthManager), middleware.AdminOnly())
			if deps.Config == nil || deps.Config.RateLimit.Enabled {
				admin.Use(middleware.RateLimit(nil, deps.SubjectLimiter))
			}
			deps.Diagnostics.RegisterProtected(admin)
		}
	}

	api := r.Group("/api")
	if deps.PaymentHandler != nil {
		deps.PaymentHandler.RegisterRoutes(api)
	}
	if deps.MailHandler != nil {
		deps.MailHandler.RegisterRoutes(api)
	}
	if deps.ProbeHandler != nil {
		deps.ProbeHandler.RegisterRoutes(api)
	}

	return r
}
