package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
)

// Sentinel errors for HTTP mapping.
var (
	ErrInvalidAddress  = errors.New("invalid recipient address")
	ErrSMTPUnavailable = errors.New("smtp server unavailable")
	ErrQuotaExceeded   = errors.New("daily send quota exceeded")
)

// Service simulates an SMTP delivery, logging every step.
type Service struct {
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	connect   time.Duration
	deliver   time.Duration
}

// NewService builds the service. Delays simulate connect and delivery.
func NewService(connect, deliver time.Duration) *Service {
	return &Service{
		validator: validator.New(),
		sanitizer: bluemonday.UGCPolicy(),
		connect:   connect,
		deliver:   deliver,
	}
}

// Send delivers a message.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	log := logging.FromContext(ctx).Named("mail")
	log.Info("mail send requested", zap.String("to", req.To), zap.String("subject", req.Subject))

	log.Debug("validating recipient")
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if !strings.Contains(req.To, "@") {
		log.Error("invalid recipient address", zap.String("to", req.To))
		return nil, ErrInvalidAddress
	}
	log.Info("recipient validated")

	log.Debug("connecting to smtp server")
	if err := wait(ctx, s.connect); err != nil {
		return nil, err
	}
	if strings.Contains(req.To, "fail") {
		err := fmt.Errorf("%w: connection timeout", ErrSMTPUnavailable)
		log.Error("smtp connection failed", zap.Error(err))
		return nil, err
	}
	log.Info("smtp connection established")

	log.Debug("rendering message body")
	body := s.sanitizer.Sanitize(req.Body)
	log.Debug("message body rendered", zap.Int("bytes", len(body)))

	log.Info("delivering message")
	if err := wait(ctx, s.deliver); err != nil {
		return nil, err
	}
	if strings.Contains(req.Subject, "error") {
		log.Error("delivery rejected", zap.Error(ErrQuotaExceeded))
		return nil, ErrQuotaExceeded
	}

	id := uuid.NewString()
	log.Info("mail delivered", zap.String("message_id", id))
	return &SendResult{Success: true, Message: "mail delivered", MessageID: id}, nil
}

func wait(ctx context.Context, d time.Duration) error {
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
