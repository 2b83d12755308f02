package limiter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDeclaredSize(t *testing.T) {
	assert.NoError(t, CheckDeclaredSize(100, 100), "exactly at limit passes")
	assert.NoError(t, CheckDeclaredSize(-1, 100), "no declaration passes")
	assert.NoError(t, CheckDeclaredSize(0, 100))

	err := CheckDeclaredSize(101, 100)
	require.Error(t, err)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(101), sizeErr.Size)
	assert.Equal(t, int64(100), sizeErr.MaxSize)
}

func TestCheckBodySize_BoundaryExact(t *testing.T) {
	assert.NoError(t, CheckBodySize(65536, 65536))

	err := CheckBodySize(65537, 65536)
	var sizeErr *SizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(65537), sizeErr.Size)
	assert.Equal(t, int64(65536), sizeErr.MaxSize)
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewRateLimiter()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow("ep-1", 5), "request %d should pass", i+1)
	}

	err := l.Allow("ep-1", 5)
	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 5, rateErr.Limit)

	// A rejected request does not push the counter past the limit.
	assert.Equal(t, 5, l.Count("ep-1"))
}

func TestRateLimiter_PerEndpointCounters(t *testing.T) {
	l := NewRateLimiter()

	require.NoError(t, l.Allow("ep-1", 1))
	require.Error(t, l.Allow("ep-1", 1))
	assert.NoError(t, l.Allow("ep-2", 1), "other endpoints are unaffected")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	l := NewRateLimiter()
	base := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }

	require.NoError(t, l.Allow("ep-1", 1))
	require.Error(t, l.Allow("ep-1", 1))

	// Cross the minute boundary: counter resets.
	base = base.Add(35 * time.Second)
	assert.NoError(t, l.Allow("ep-1", 1))
	assert.Equal(t, 1, l.Count("ep-1"))
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	l := NewRateLimiter()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Allow("ep-1", 0))
	}
}

func TestRateLimiter_SweepDropsStaleWindows(t *testing.T) {
	l := NewRateLimiter()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	require.NoError(t, l.Allow("old-ep", 10))

	base = base.Add(2 * time.Minute)
	require.NoError(t, l.Allow("new-ep", 10))

	l.mu.Lock()
	_, stale := l.windows["old-ep"]
	l.mu.Unlock()
	assert.False(t, stale, "stale window should be swept")
}

func TestRateLimiter_Reset(t *testing.T) {
	l := NewRateLimiter()
	require.NoError(t, l.Allow("ep-1", 1))
	l.Reset()
	assert.NoError(t, l.Allow("ep-1", 1))
}

func TestErrorsAreDistinct(t *testing.T) {
	var sizeErr *SizeExceededError
	var rateErr *RateLimitedError
	assert.False(t, errors.As(CheckBodySize(2, 1), &rateErr))
	assert.True(t, errors.As(CheckBodySize(2, 1), &sizeErr))
}
