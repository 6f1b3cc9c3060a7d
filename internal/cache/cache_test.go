package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/palmistry/internal/palm"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, time.Hour, 24*time.Hour), mr
}

func TestVerdictRoundTrip(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	key := ImageKey("data:image/jpeg;base64,AAAA")

	_, ok, err := c.Verdict(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := palm.Verdict{IsPalm: true, Confidence: 93, Message: "ok"}
	require.NoError(t, c.StoreVerdict(ctx, key, want))

	got, ok, err := c.Verdict(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Verdict(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImageKeyIsStable(t *testing.T) {
	assert.Equal(t, ImageKey("abc"), ImageKey("abc"))
	assert.NotEqual(t, ImageKey("abc"), ImageKey("abd"))
	assert.Len(t, ImageKey(""), 64)
}

func TestFirstDelivery(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	first, err := c.FirstDelivery(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := c.FirstDelivery(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, c.ForgetDelivery(ctx, "evt_1"))
	retried, err := c.FirstDelivery(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, retried)

	mr.FastForward(25 * time.Hour)
	expired, err := c.FirstDelivery(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestNilCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	_, ok, err := c.Verdict(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.StoreVerdict(ctx, "k", palm.Verdict{}))

	first, err := c.FirstDelivery(ctx, "evt")
	assert.NoError(t, err)
	assert.True(t, first)
	assert.Nil(t, New(nil, time.Hour, time.Hour))
}

func TestRedisDownSurfacesErrors(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()

	_, _, err := c.Verdict(context.Background(), "k")
	assert.Error(t, err)
	first, err := c.FirstDelivery(context.Background(), "evt")
	assert.Error(t, err)
	assert.True(t, first)
}
