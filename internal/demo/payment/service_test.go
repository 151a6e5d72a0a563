package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kidpech/tracelens/internal/infrastructure/logging"
	"github.com/kidpech/tracelens/internal/tracelens"
)

func sessionContext(t *testing.T, session string) (context.Context, *tracelens.Registry) {
	t.Helper()
	registry, err := tracelens.NewRegistry(100)
	require.NoError(t, err)
	base := zap.New(tracelens.NewCaptureCore(registry, zapcore.DebugLevel, nil))
	ctx := tracelens.WithSessionID(context.Background(), session)
	return logging.WithContext(ctx, tracelens.ContextLogger(ctx, base)), registry
}

func TestProcessApproved(t *testing.T) {
	ctx, registry := sessionContext(t, "s1")
	service := NewService(0, 0)

	receipt, err := service.Process(ctx, ProcessRequest{Amount: 5000, Method: "card", CardNumber: "4111111111111111"})

	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, 5000, receipt.Amount)
	require.Len(t, receipt.ApprovalNumber, 10)
	logs := registry.Peek("s1")
	require.Equal(t, "payment started amount=5000 method=card", logs[0].Message)
	require.Equal(t, "payment completed", logs[len(logs)-1].Message)
	for _, e := range logs {
		require.Equal(t, "payment", e.Logger)
	}
}

func TestProcessDeclined(t *testing.T) {
	ctx, registry := sessionContext(t, "s1")
	service := NewService(0, 0)

	_, err := service.Process(ctx, ProcessRequest{Amount: 100, Method: "card", CardNumber: "4111000011111111"})

	require.True(t, errors.Is(err, ErrCardDeclined))
	logs := registry.Peek("s1")
	require.Equal(t, "ERROR", logs[len(logs)-1].Level)
}

func TestProcessRejectsInput(t *testing.T) {
	service := NewService(0, 0)

	_, err := service.Process(context.Background(), ProcessRequest{Amount: 0, Method: "card"})
	require.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = service.Process(context.Background(), ProcessRequest{Amount: 10, Method: "crypto"})
	require.True(t, errors.Is(err, ErrUnsupportedMethod))

	_, err = service.Process(context.Background(), ProcessRequest{Amount: 10})
	require.Error(t, err)
}
