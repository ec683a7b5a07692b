package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdoc/blockdoc/common/logger"
)

func testLimiter(t *testing.T) *RateLimiter {
	t.Helper()

	rc := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	require.NoError(t, rc.FlushDB(ctx).Err())
	t.Cleanup(func() { rc.Close() })

	return NewRateLimiter(rc, logger.New("error", "text"))
}

func TestCheckUploadLimit(t *testing.T) {
	limiter := testLimiter(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := limiter.CheckUploadLimit(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.CurrentCount)
	}

	res, err := limiter.CheckUploadLimit(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(4), res.CurrentCount)
	assert.Positive(t, res.RetryAfterSeconds)

	// Other clients are counted separately
	other, err := limiter.CheckUploadLimit(ctx, "10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestResetLimit(t *testing.T) {
	limiter := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.CheckUploadLimit(ctx, "10.0.0.9", 2, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.ResetLimit(ctx, "rate_limit:upload:10.0.0.9"))

	res, err := limiter.CheckUploadLimit(ctx, "10.0.0.9", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentCount)
}
