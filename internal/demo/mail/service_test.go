package mail

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

func TestSendDelivers(t *testing.T) {
	ctx, registry := sessionContext(t, "s1")

	result, err := NewService(0, 0).Send(ctx, SendRequest{To: "dev@example.com", Subject: "hi", Body: "<script>x</script>hello"})

	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.MessageID)
	logs := registry.Peek("s1")
	require.Equal(t, "mail", logs[0].Logger)
	require.Contains(t, logs[len(logs)-1].Message, "mail delivered message_id="+result.MessageID)
}

func TestSendFailures(t *testing.T) {
	ctx, registry := sessionContext(t, "s1")
	service := NewService(0, 0)

	_, err := service.Send(ctx, SendRequest{To: "nobody", Subject: "hi"})
	require.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = service.Send(ctx, SendRequest{To: "fail@example.com", Subject: "hi"})
	require.True(t, errors.Is(err, ErrSMTPUnavailable))

	_, err = service.Send(ctx, SendRequest{To: "dev@example.com", Subject: "an error"})
	require.True(t, errors.Is(err, ErrQuotaExceeded))

	var errorsLogged int
	for _, e := range registry.Peek("s1") {
		if e.Level == "ERROR" {
			errorsLogged++
		}
	}
	require.Equal(t, 3, errorsLogged)
}

func TestSendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(1e9, 0).Send(ctx, SendRequest{To: "dev@example.com", Subject: "hi"})

	require.True(t, errors.Is(err, context.Canceled))
}
