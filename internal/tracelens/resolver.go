package tracelens

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Strategy identifies one way of locating a session id on a request.
type Strategy int

const (
	StrategyHeader Strategy = iota
	StrategyCookie
	StrategyNativeSession
)

func (s Strategy) String() string {
	switch s {
	case StrategyHeader:
		return "header"
	case StrategyCookie:
		return "cookie"
	case StrategyNativeSession:
		return "native-session"
	default:
		return "unknown"
	}
}

// SessionStore is the host's server-side session store.
type SessionStore interface {
	// Lookup returns the session id for a session cookie token.
	Lookup(ctx context.Context, token string) (string, bool, error)
}

// ResolverConfig selects the enabled strategies.
type ResolverConfig struct {
	HeaderName       string
	CookieName       string
	NativeCookieName string
}

// Resolver finds the session id of a request. Strategies are tried in the
// fixed order header, cookie, native session; unconfigured ones are skipped.
type Resolver struct {
	cfg        ResolverConfig
	store      SessionStore
	strategies []Strategy
	logger     *zap.Logger
}

// NewResolver builds a resolver. store may be nil, which disables native
// session lookup.
func NewResolver(cfg ResolverConfig, store SessionStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{cfg: cfg, store: store, logger: logger}
	if cfg.HeaderName != "" {
		r.strategies = append(r.strategies, StrategyHeader)
	}
	if cfg.CookieName != "" {
		r.strategies = append(r.strategies, StrategyCookie)
	}
	if store != nil && cfg.NativeCookieName != "" {
		r.strategies = append(r.strategies, StrategyNativeSession)
	}
	return r
}

// Strategies returns the enabled strategies in priority order.
func (r *Resolver) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Resolve returns the session id for req, or false when none is found.
func (r *Resolver) Resolve(req *http.Request) (string, bool) {
	if req == nil {
		return "", false
	}
	for _, s := range r.strategies {
		if id, ok := r.resolveWith(s, req); ok {
			return id, true
		}
	}
	return "", false
}

func (r *Resolver) resolveWith(s Strategy, req *http.Request) (string, bool) {
	switch s {
	case StrategyHeader:
		id := strings.TrimSpace(req.Header.Get(r.cfg.HeaderName))
		return id, id != ""
	case StrategyCookie:
		return cookieValue(req, r.cfg.CookieName)
	case StrategyNativeSession:
		token, ok := cookieValue(req, r.cfg.NativeCookieName)
		if !ok {
			return "", false
		}
		id, found, err := r.store.Lookup(req.Context(), token)
		if err != nil {
			r.logger.Warn("native session lookup failed", zap.Error(err))
			return "", false
		}
		return id, found && id != ""
	}
	return "", false
}

func cookieValue(req *http.Request, name string) (string, bool) {
	c, err := req.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
