package diagnostics

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/tracelens"
	"github.com/kidpech/tracelens/pkg/response"
)

// Handler exposes the session log endpoints.
type Handler struct {
	registry   *tracelens.Registry
	dispatcher *tracelens.Dispatcher
	resolver   *tracelens.Resolver
	render     func(tracelens.LogEntry) string
	logger     *zap.Logger
}

// NewHandler returns handler. render may be nil.
func NewHandler(registry *tracelens.Registry, dispatcher *tracelens.Dispatcher, resolver *tracelens.Resolver, render func(tracelens.LogEntry) string, logger *zap.Logger) *Handler {
	if render == nil {
		render = tracelens.LogEntry.Format
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		resolver:   resolver,
		render:     render,
		logger:     logger,
	}
}

// NewRenderer returns the log line renderer. With sanitize set, markup in
// rendered lines is stripped so browser viewers can insert them as HTML.
func NewRenderer(sanitize bool) func(tracelens.LogEntry) string {
	if !sanitize {
		return tracelens.LogEntry.Format
	}
	policy := bluemonday.StrictPolicy()
	return func(e tracelens.LogEntry) string {
		return policy.Sanitize(e.Format())
	}
}

// RegisterPublic attaches the stream, snapshot and health endpoints.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/stream", h.stream)
	rg.GET("/snapshot", h.snapshot)
	rg.GET("/health", h.health)
}

// RegisterProtected attaches operator endpoints requiring auth.
func (h *Handler) RegisterProtected(rg *gin.RouterGroup) {
	rg.GET("/sessions", h.sessions)
	rg.DELETE("/sessions/:id", h.removeSession)
}

func (h *Handler) sessionID(c *gin.Context) string {
	if h.resolver == nil {
		return ""
	}
	id, _ := h.resolver.Resolve(c.Request)
	return id
}

func (h *Handler) stream(c *gin.Context) {
	ctx := c.Request.Context()
	stream := h.dispatcher.Subscribe(ctx, h.sessionID(c), newSSESender(c.Writer, ctx))
	if errors.Is(stream.Err(), tracelens.ErrMissingSessionID) {
		response.BadRequest(c, "missing_session_id", "No session ID found")
		return
	}
	// the response writer must outlive every send
	<-stream.Done()
}

func (h *Handler) snapshot(c *gin.Context) {
	id := h.sessionID(c)
	if id == "" {
		c.JSON(http.StatusOK, gin.H{
			"error": "No session ID found",
			"logs":  []string{},
		})
		return
	}
	logs := h.registry.Peek(id)
	c.JSON(http.StatusOK, gin.H{
		"sessionId": id,
		"count":     len(logs),
		"logs":      tracelens.FormatAll(logs, h.render),
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                   "UP",
		"activeSessionBufferCount": h.registry.ActiveCount(),
		"activeStreams":            h.dispatcher.Active(),
	})
}

func (h *Handler) sessions(c *gin.Context) {
	ids := h.registry.Sessions()
	c.JSON(http.StatusOK, gin.H{"sessions": ids, "count": len(ids)})
}

func (h *Handler) removeSession(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Remove(id) {
		response.NotFound(c, "session buffer")
		return
	}
	h.logger.Info("removed session log buffer", zap.String("session_id", id), zap.String("by", response.SubjectFromContext(c)))
	c.Status(http.StatusNoContent)
}
