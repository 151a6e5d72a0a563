package mail

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kidpech/tracelens/pkg/response"
)

// Handler wires HTTP routes to the Service.
type Handler struct {
	service *Service
}

// NewHandler returns a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts mail routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/mail/send", h.send)
}

func (h *Handler) send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	result, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, err)
	case errors.Is(err, ErrInvalidAddress):
		response.BadRequest(c, "invalid_address", err.Error())
	case errors.Is(err, ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, response.ErrorResponse{Error: "quota_exceeded", Message: err.Error()})
	case errors.Is(err, ErrSMTPUnavailable):
		c.JSON(http.StatusBadGateway, response.ErrorResponse{Error: "smtp_unavailable", Message: err.Error()})
	default:
		response.InternalServerError(c, err)
	}
}
