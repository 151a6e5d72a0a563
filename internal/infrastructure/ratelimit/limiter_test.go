package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurstThenBlock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, 1)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, info.Allowed, "request %d", i)
	}
	info, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, info.Allowed)
	require.Equal(t, 2, info.Limit)

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	now = now.Add(30 * time.Second)
	info, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, info.Allowed)
}

func TestMemoryLimiterPrunesIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(10, 0)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "a")
	now = now.Add(time.Hour)
	_, _ = l.Allow(context.Background(), "b")

	require.Len(t, l.store, 1)
	require.Contains(t, l.store, "b")
}
