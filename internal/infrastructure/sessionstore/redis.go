package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Redis keeps sessions in redis so every instance resolves the same ids.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a redis-backed store.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Create opens a session and returns its token.
func (r *Redis) Create(ctx context.Context) (string, error) {
	token := uuid.NewString()
	if err := r.client.Set(ctx, r.key(token), token, r.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup implements tracelens.SessionStore and slides the expiry.
func (r *Redis) Lookup(ctx context.Context, token string) (string, bool, error) {
	id, err := r.client.GetEx(ctx, r.key(token), r.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Invalidate ends a session.
func (r *Redis) Invalidate(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.key(token)).Err()
}

func (r *Redis) key(token string) string {
	return r.prefix + ":" + token
}
