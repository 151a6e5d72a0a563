package payment

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

// RegisterRoutes mounts payment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payment/process", h.process)
}

func (h *Handler) process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	receipt, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, err)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnsupportedMethod):
		c.JSON(http.StatusUnprocessableEntity, response.ErrorResponse{Error: "payment_rejected", Message: err.Error()})
	case errors.Is(err, ErrCardDeclined):
		c.JSON(http.StatusPaymentRequired, response.ErrorResponse{Error: "card_declined", Message: err.Error()})
	default:
		response.InternalServerError(c, err)
	}
}
