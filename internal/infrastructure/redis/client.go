package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/config"
)

// ErrNotConfigured is returned when no address is set.
var ErrNotConfigured = errors.New("redis address not configured")

// Client wraps the redis connection shared by the native session store and
// the rate limiters.
type Client struct {
	Native *redis.Client
}

// Connect instantiates redis client and verifies it answers.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, ErrNotConfigured
	}
	options := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	if cfg.TLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		}
		_ = client.Close()
		return nil, err
	}

	return &Client{Native: client}, nil
}

// Close redis connection.
func (c *Client) Close() error {
	if c == nil || c.Native == nil {
		return nil
	}
	return c.Native.Close()
}
