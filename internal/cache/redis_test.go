package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLikeCount(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	_, found, err := c.GetLikeCount(ctx, "e1", "u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.UpdateLikeCount(ctx, "e1", "u1", 7))
	n, found, err := c.GetLikeCount(ctx, "e1", "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), n)

	mr.FastForward(59 * time.Minute)
	_, found, _ = c.GetLikeCount(ctx, "e1", "u1") // refreshes TTL
	assert.True(t, found)
	mr.FastForward(59 * time.Minute)
	_, found, _ = c.GetLikeCount(ctx, "e1", "u1")
	assert.True(t, found)

	mr.FastForward(61 * time.Minute)
	_, found, _ = c.GetLikeCount(ctx, "e1", "u1")
	assert.False(t, found)
}

func TestInvalidateLikeCounts(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.UpdateLikeCount(ctx, "e1", "u1", 1))
	require.NoError(t, c.UpdateLikeCount(ctx, "e2", "u1", 2))
	require.NoError(t, c.UpdateLikeCount(ctx, "e1", "u2", 3))

	require.NoError(t, c.InvalidateLikeCounts(ctx, "e1", "u2"))
	_, found, _ := c.GetLikeCount(ctx, "e1", "u2")
	assert.False(t, found)

	require.NoError(t, c.InvalidateUserLikeCounts(ctx, "u1"))
	_, found, _ = c.GetLikeCount(ctx, "e1", "u1")
	assert.False(t, found)
	_, found, _ = c.GetLikeCount(ctx, "e2", "u1")
	assert.False(t, found)
}

func TestAcquireGuard(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	release, ok, err := c.AcquireGuard(ctx, "block", "a", "b", "e1", 15*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireGuard(ctx, "block", "a", "b", "e1", 15*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// a different action is not blocked
	releaseReport, ok, err := c.AcquireGuard(ctx, "report", "a", "b", "e1", 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	releaseReport()

	release()
	release2, ok, err := c.AcquireGuard(ctx, "block", "a", "b", "e1", 15*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// an expired guard re-acquired by someone else survives a stale release
	mr.FastForward(16 * time.Second)
	_, ok, _ = c.AcquireGuard(ctx, "block", "a", "b", "e1", 15*time.Second)
	require.True(t, ok)
	release2()
	_, ok, _ = c.AcquireGuard(ctx, "block", "a", "b", "e1", 15*time.Second)
	assert.False(t, ok)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	now := time.Now()

	ok, err := c.Reserve(ctx, "u", "e1", "like", now, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(23 * time.Hour)
	ok, err = c.Reserve(ctx, "u", "e1", "like", now, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Hour)
	ok, err = c.Reserve(ctx, "u", "e1", "like", now, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 2; i++ {
		ok, err = c.Reserve(ctx, "u", "e1", "match", now, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
