package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
)

// Sentinel errors for HTTP mapping.
var (
	ErrInvalidAmount     = errors.New("invalid payment amount")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrCardDeclined      = errors.New("card declined")
)

// Service simulates a payment gateway round trip, logging every step.
type Service struct {
	validator *validator.Validate
	gateway   time.Duration
	persist   time.Duration
}

// NewService builds the service. Delays simulate the gateway and the
// ledger write.
func NewService(gateway, persist time.Duration) *Service {
	return &Service{validator: validator.New(), gateway: gateway, persist: persist}
}

// Process runs a payment.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*Receipt, error) {
	log := logging.FromContext(ctx).Named("payment")
	log.Info("payment started", zap.Int("amount", req.Amount), zap.String("method", req.Method))

	log.Debug("validating payment details")
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		log.Warn("invalid payment amount", zap.Int("amount", req.Amount))
		return nil, ErrInvalidAmount
	}
	log.Info("payment details validated")

	log.Debug("checking payment method", zap.String("method", req.Method))
	switch req.Method {
	case "card":
		log.Info("card payment selected")
	case "bank":
		log.Info("bank transfer selected")
	default:
		log.Error("unsupported payment method", zap.String("method", req.Method))
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}

	log.Info("calling payment gateway")
	if err := sleep(ctx, s.gateway); err != nil {
		return nil, err
	}
	if strings.Contains(req.CardNumber, "0000") {
		log.Error("card authorisation declined", zap.String("reason", "insufficient funds"))
		return nil, ErrCardDeclined
	}
	approval := "AP" + shortID()
	log.Info("gateway approved", zap.String("approval", approval))

	log.Debug("writing payment ledger")
	if err := sleep(ctx, s.persist); err != nil {
		return nil, err
	}
	log.Info("payment ledger written")

	receipt := "RC" + shortID()
	log.Info("receipt issued", zap.String("receipt", receipt))
	log.Info("payment completed")
	return &Receipt{
		Success:        true,
		Message:        "payment completed",
		ApprovalNumber: approval,
		ReceiptNumber:  receipt,
		Amount:         req.Amount,
	}, nil
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
