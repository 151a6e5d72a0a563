package tracelens

import (
	"context"

	"go.uber.org/zap"
)

// Field keys understood by the capture core.
const (
	SessionKey   = "tracelens_session_id"
	RequestIDKey = "request_id"
)

type sessionCtxKey struct{}

// WithSessionID tags ctx with the active session.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext returns the session carried by ctx, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionCtxKey{}).(string)
	return id, ok && id != ""
}

// SessionField binds a logger to a session.
func SessionField(sessionID string) zap.Field {
	return zap.String(SessionKey, sessionID)
}

// ContextLogger returns base bound to the session carried by ctx. Without a
// session it returns base unchanged, so its events are not captured.
func ContextLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	id, ok := SessionIDFromContext(ctx)
	if !ok {
		return base
	}
	return base.With(SessionField(id))
}
