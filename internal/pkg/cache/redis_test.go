package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisClient(&Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisClient_GetMiss(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_SetGetDelete(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "42", time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient_LockIsExclusiveAndTokenChecked(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "lock:a", "token-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "lock:a", "token-2", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong token leaves the lock in place
	require.NoError(t, c.ReleaseLock(ctx, "lock:a", "token-2"))
	assert.True(t, mr.Exists("lock:a"))

	require.NoError(t, c.ReleaseLock(ctx, "lock:a", "token-1"))
	assert.False(t, mr.Exists("lock:a"))
}

func TestRedisClient_LockExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "lock:b", "token-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = c.AcquireLock(ctx, "lock:b", "token-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClient_SetNXKeepsExisting(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", "5", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Set(ctx, "k", "2", time.Minute))
	ok, err = c.SetNX(ctx, "k", "5", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", val)
}
