package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kidpech/tracelens/internal/config"
)

// Claims extends JWT registered claims with operator metadata.
type Claims struct {
	Role      string `json:"role"`
	SecretVer string `json:"sv"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Manager issues and validates operator access tokens for the admin
// endpoints.
type Manager struct {
	cfg config.AuthConfig
}

// NewManager builds Manager.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Enabled reports whether a signing secret is configured.
func (m *Manager) Enabled() bool {
	return m != nil && m.cfg.AccessSecret != ""
}

// IssueAccessToken signs an access token for subject with role.
func (m *Manager) IssueAccessToken(subject, role string) (string, error) {
	if !m.Enabled() {
		return "", errors.New("auth disabled")
	}
	now := time.Now().UTC()
	claims := Claims{
		Role:      role,
		SecretVer: m.cfg.SecretVersion,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.TokenIssuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tkn.SignedString([]byte(m.cfg.AccessSecret))
}

// ParseAccessToken validates and extracts claims.
func (m *Manager) ParseAccessToken(token string) (*Claims, error) {
	if !m.Enabled() {
		return nil, errors.New("auth disabled")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(m.cfg.AccessSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.SecretVer != m.cfg.SecretVersion {
		return nil, errors.New("token version mismatch")
	}
	if claims.TokenType != "access" {
		return nil, errors.New("not an access token")
	}
	return claims, nil
}
