package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *RedisCacheBackend {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return NewRedisCacheBackend(mr.Addr(), "meta-test", &redis.Options{})
}

func TestRedisCacheBackend_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, ok, err := b.GetKey(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.SetKey(ctx, "k1", "deadbeef", time.Minute))

	val, ok, err := b.GetKey(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "deadbeef", val)

	require.NoError(t, b.DeleteKey(ctx, "k1"))
	_, ok, err = b.GetKey(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseURL(t *testing.T) {
	scheme, rest, err := ParseURL("redis://cache.internal:6379/0")
	require.NoError(t, err)
	require.Equal(t, "redis", scheme)
	require.Equal(t, "cache.internal:6379/0", rest)

	_, _, err = ParseURL("ftp://nope")
	require.Error(t, err)
}

func TestLimiter_NilIsNoop(t *testing.T) {
	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
}
