package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerCtxKey struct{}

// New builds a zap logger according to env.
func New(env string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if env == "development" {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

// Attach tees capture into logger. The returned logger writes everything
// logger did plus whatever capture accepts.
func Attach(logger *zap.Logger, capture zapcore.Core) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capture == nil {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, capture)
	}))
}

// ParseLevel maps a config level name to a zap level, defaulting to debug.
func ParseLevel(name string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.DebugLevel
	}
	return lvl
}

// WithRequestID attaches request context to logger.
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("request_id", requestID))
}

// WithContext stores a request-scoped logger in ctx.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the request-scoped logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerCtxKey{}).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

// ReplaceGlobals ensures go-kit libs use same logger.
func ReplaceGlobals(logger *zap.Logger) {
	zap.ReplaceGlobals(logger)
}

// Sync flushes logger.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}
