package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/trendpersona/internal/logging"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

func setupTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, logging.Discard()), mr
}

func TestRedisSetGet(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "golang")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "golang", types.CategoryTech, time.Hour))
	got, ok, err := c.Get(ctx, "golang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.CategoryTech, got)

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"golang"))
}

func TestRedisExpiry(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "deprem", types.CategorySad, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "deprem")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisDropsInvalidEntries(t *testing.T) {
	c, mr := setupTestCache(t)
	require.NoError(t, mr.Set(keyPrefix+"x", "politics"))

	_, ok, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(keyPrefix+"x"))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Dial(context.Background(), "redis://"+mr.Addr(), logging.Discard())
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))

	_, err = Dial(context.Background(), "not a url", logging.Discard())
	assert.Error(t, err)
}
