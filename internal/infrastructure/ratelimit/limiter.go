package ratelimit

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RateLimitInfo captures limiter response metadata.
type RateLimitInfo struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter defines common interface.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitInfo, error)
}

// MemoryLimiter implements a token bucket per key. Buckets idle for longer
// than idleTTL are pruned on later calls so one-off clients do not
// accumulate.
type MemoryLimiter struct {
	limit     int
	burst     int
	idleTTL   time.Duration
	store     map[string]*bucket
	lastPrune time.Time
	mu        sync.Mutex
	now       func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewMemoryLimiter builds RAM limiter allowing limit requests per minute
// plus burst.
func NewMemoryLimiter(limit, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		store:   make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow implements limiter.
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (RateLimitInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.pruneLocked(now)
	capacity := float64(m.limit + m.burst)
	b, ok := m.store[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		m.store[key] = b
	}
	refill := now.Sub(b.last).Minutes() * float64(m.limit)
	b.tokens = min(capacity, b.tokens+refill)
	b.last = now
	reset := now.Add(time.Minute)
	if b.tokens >= 1 {
		b.tokens--
		return RateLimitInfo{Allowed: true, Limit: m.limit, Remaining: int(b.tokens), Reset: reset}, nil
	}
	return RateLimitInfo{Allowed: false, Limit: m.limit, Remaining: 0, Reset: reset}, nil
}

func (m *MemoryLimiter) pruneLocked(now time.Time) {
	if now.Sub(m.lastPrune) < m.idleTTL {
		return
	}
	m.lastPrune = now
	for k, b := range m.store {
		if now.Sub(b.last) > m.idleTTL {
			delete(m.store, k)
		}
	}
}

// RedisLimiter coordinates a fixed one-minute window across instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	prefix string
}

// NewRedisLimiter builds redis limiter.
func NewRedisLimiter(client *redis.Client, limit int, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, prefix: prefix}
}

// Allow implements limiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitInfo, error) {
	redisKey := r.prefix + ":" + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, time.Minute)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return RateLimitInfo{}, err
	}
	reset := time.Now().Add(time.Minute)
	if d := ttl.Val(); d > 0 {
		reset = time.Now().Add(d)
	}
	count := int(incr.Val())
	if count <= r.limit {
		return RateLimitInfo{Allowed: true, Limit: r.limit, Remaining: r.limit - count, Reset: reset}, nil
	}
	return RateLimitInfo{Allowed: false, Limit: r.limit, Remaining: 0, Reset: reset}, nil
}
