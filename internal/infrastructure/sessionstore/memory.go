// Package sessionstore holds the host's native server-side sessions, the
// last fallback the session resolver consults.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps sessions in process. Every hit slides the expiry by ttl, and
// expired tokens are pruned from Create at most once per ttl.
type Memory struct {
	ttl       time.Duration
	mu        sync.Mutex
	sessions  map[string]time.Time // token -> expiry
	lastPrune time.Time
	now       func() time.Time
}

// NewMemory builds an in-process store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, sessions: make(map[string]time.Time), now: time.Now}
}

// Create opens a session and returns its token.
func (m *Memory) Create(ctx context.Context) (string, error) {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.pruneLocked(now)
	m.sessions[token] = now.Add(m.ttl)
	return token, nil
}

// Lookup implements tracelens.SessionStore. Tokens double as session ids.
func (m *Memory) Lookup(ctx context.Context, token string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.sessions[token]
	if !ok {
		return "", false, nil
	}
	now := m.now()
	if now.After(expiry) {
		delete(m.sessions, token)
		return "", false, nil
	}
	m.sessions[token] = now.Add(m.ttl)
	return token, true, nil
}

// Invalidate ends a session.
func (m *Memory) Invalidate(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) pruneLocked(now time.Time) {
	if now.Sub(m.lastPrune) < m.ttl {
		return
	}
	m.lastPrune = now
	for token, expiry := range m.sessions {
		if now.After(expiry) {
			delete(m.sessions, token)
		}
	}
}
