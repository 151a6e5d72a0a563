// Package probe serves endpoints whose only job is to emit recognisable log
// sequences for a session.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
	"github.com/kidpech/tracelens/pkg/response"
)

// SessionManager opens and ends native server-side sessions.
type SessionManager interface {
	Create(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, token string) error
}

// Handler exposes the probe endpoints.
type Handler struct {
	sessions   SessionManager
	cookieName string
	cookieTTL  time.Duration
	step       time.Duration
}

// NewHandler returns a Handler. sessions may be nil, which disables the
// login and logout endpoints.
func NewHandler(sessions SessionManager, cookieName string, cookieTTL, step time.Duration) *Handler {
	return &Handler{sessions: sessions, cookieName: cookieName, cookieTTL: cookieTTL, step: step}
}

// RegisterRoutes mounts probe routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	test := rg.Group("/test")
	test.GET("/simple", h.simple)
	test.GET("/error", h.fail)
	test.GET("/slow", h.slow)
	test.GET("/multi-log", h.multiLog)
	if h.sessions != nil {
		test.POST("/session", h.login)
		test.DELETE("/session", h.logout)
	}
}

func (h *Handler) simple(c *gin.Context) {
	log := logging.FromContext(c.Request.Context()).Named("probe")
	log.Info("simple probe called")
	log.Debug("debug level line")
	log.Warn("warn level line")
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (h *Handler) fail(c *gin.Context) {
	log := logging.FromContext(c.Request.Context()).Named("probe")
	log.Info("error probe called")
	log.Debug("raising a deliberate failure")
	err := fmt.Errorf("probe: %w", errors.New("deliberate failure"))
	log.Error("probe failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "probe_failed", Message: err.Error()})
}

func (h *Handler) slow(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.FromContext(ctx).Named("probe")
	log.Info("slow probe started")
	for i := 1; i <= 5; i++ {
		select {
		case <-ctx.Done():
			log.Warn("slow probe abandoned", zap.Int("step", i))
			return
		case <-time.After(h.step):
		}
		log.Debug("processing", zap.Int("step", i), zap.Int("of", 5))
	}
	log.Info("slow probe finished")
	c.JSON(http.StatusOK, gin.H{"message": "done", "steps": 5})
}

func (h *Handler) multiLog(c *gin.Context) {
	log := logging.FromContext(c.Request.Context()).Named("probe")
	log.Info("multi-log probe started")
	log.Debug("step 1: initialise")
	log.Debug("step 2: load data")
	log.Info("data loaded", zap.Int("items", 100))
	log.Debug("step 3: validate data")
	log.Warn("some items raised warnings", zap.Int("items", 3))
	log.Debug("step 4: process data")
	log.Info("data processed")
	log.Debug("step 5: store results")
	log.Info("multi-log probe finished")
	c.JSON(http.StatusOK, gin.H{"message": "logged", "lines": 10})
}

// login opens a native session and hands its cookie to the client, so later
// requests resolve through the native session strategy.
func (h *Handler) login(c *gin.Context) {
	token, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		response.InternalServerError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, int(h.cookieTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusCreated, gin.H{"sessionId": token})
}

// logout ends the native session named by the cookie and expires the cookie.
// A request without the cookie is a no-op.
func (h *Handler) logout(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err == nil && token != "" {
		if err := h.sessions.Invalidate(c.Request.Context(), token); err != nil {
			response.InternalServerError(c, err)
			return
		}
		logging.FromContext(c.Request.Context()).Named("probe").Info("native session closed")
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}
