package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/infra/config"
)

func TestIPRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, func() time.Time { return now })

	_, ok := limiter.take("10.0.0.1")
	require.True(t, ok)
	_, ok = limiter.take("10.0.0.1")
	require.True(t, ok)

	wait, ok := limiter.take("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, time.Second, wait)

	_, ok = limiter.take("10.0.0.2")
	require.True(t, ok, "buckets are per address")

	now = now.Add(1500 * time.Millisecond)
	_, ok = limiter.take("10.0.0.1")
	require.True(t, ok)
}

func TestIPRateLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, func() time.Time { return now })

	_, _ = limiter.take("10.0.0.1")
	now = now.Add(10 * time.Minute)
	_, _ = limiter.take("10.0.0.2")

	require.NotContains(t, limiter.buckets, "10.0.0.1")
	require.Contains(t, limiter.buckets, "10.0.0.2")
}

func TestIsExcludedMatchesPathPrefixes(t *testing.T) {
	prefixes := []string{"/api/v1/conversations"}
	require.True(t, isExcluded("/api/v1/conversations", prefixes))
	require.True(t, isExcluded("/api/v1/conversations/abc/messages", prefixes))
	require.False(t, isExcluded("/api/v1/conversationsx", prefixes))
	require.False(t, isExcluded("/api/v1/plans", prefixes))
}

func TestAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost:5173"}

	origin, ok := allowedOrigin("http://LOCALHOST:5173", allowed)
	require.True(t, ok)
	require.Equal(t, "http://LOCALHOST:5173", origin)

	_, ok = allowedOrigin("https://evil.example", allowed)
	require.False(t, ok)

	origin, ok = allowedOrigin("https://any.example", nil)
	require.True(t, ok)
	require.Equal(t, "*", origin)
}
