package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fahrme/internal/cache"
	"github.com/oggyb/fahrme/internal/rpc"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	_, ok, err := c.GetProfile(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	p := rpc.Profile{ID: "1", Email: "anna@fahrme.de", Handle: "anna", Name: "Anna"}
	require.NoError(t, c.SetProfile(ctx, p))
	assert.Equal(t, cache.ProfileTTL, mr.TTL(c.KeyForProfile("1")))

	mr.FastForward(30 * time.Minute)
	got, ok, err := c.GetProfile(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, cache.ProfileTTL, mr.TTL(c.KeyForProfile("1")), "reads refresh the TTL")

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetProfile(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileCache_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	require.NoError(t, mr.Set(c.KeyForProfile("1"), "{nope"))
	_, ok, err := c.GetProfile(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(c.KeyForProfile("1")))
}

func TestAllowLogin(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	for i := 0; i < 3; i++ {
		ok, err := c.AllowLogin(ctx, "Anna@fahrme.de", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := c.AllowLogin(ctx, "anna@fahrme.de", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "emails are throttled case-insensitively")

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.AllowLogin(ctx, "anna@fahrme.de", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.ResetLogin(ctx, "anna@fahrme.de"))
	assert.False(t, mr.Exists(c.KeyForLoginAttempts("anna@fahrme.de")))

	ok, err = c.AllowLogin(ctx, "x@y.z", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a zero limit disables the throttle")
}

func TestAllowLogin_FailsOpen(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	c := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})}
	mr.Close()

	ok, err := c.AllowLogin(context.Background(), "a@b.c", 1, time.Minute)
	assert.Error(t, err)
	assert.True(t, ok)
}
