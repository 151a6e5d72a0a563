package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kidpech/tracelens/internal/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:   "secret",
		AccessTokenTTL: time.Minute,
		TokenIssuer:    "tracelens",
		SecretVersion:  "v1",
	}
}

func TestIssueAndParse(t *testing.T) {
	m := NewManager(testConfig())

	token, err := m.IssueAccessToken("ops@example.com", "admin")
	require.NoError(t, err)

	claims, err := m.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", claims.Subject)
	require.Equal(t, "admin", claims.Role)
}

func TestParseRejectsRotatedSecretVersion(t *testing.T) {
	token, err := NewManager(testConfig()).IssueAccessToken("ops", "admin")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.SecretVersion = "v2"
	_, err = NewManager(cfg).ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewManager(testConfig()).IssueAccessToken("ops", "admin")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.AccessSecret = "other"
	_, err = NewManager(cfg).ParseAccessToken(token)
	require.Error(t, err)
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(config.AuthConfig{})

	require.False(t, m.Enabled())
	_, err := m.IssueAccessToken("ops", "admin")
	require.Error(t, err)
}
