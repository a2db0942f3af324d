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

type profile struct {
	Name string `json:"name"`
	Mail string `json:"mail"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, "profiles"), mr
}

func TestRedisCachePrefixesKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetMultiJSON(ctx, map[string]any{"u1": profile{Name: "Ada", Mail: "ada@contoso.com"}}, time.Minute))
	assert.True(t, mr.Exists("profiles:u1"))
	assert.False(t, mr.Exists("u1"))

	got, err := c.GetMultiJSON(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada","mail":"ada@contoso.com"}`, string(got["u1"]))

	unprefixed := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	require.NoError(t, unprefixed.SetMultiJSON(ctx, map[string]any{"raw": profile{Name: "B"}}, time.Minute))
	assert.True(t, mr.Exists("raw"))
}

func TestRedisCacheMulti(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetMultiJSON(ctx, map[string]any{
		"a": profile{Name: "A"},
		"b": profile{Name: "B"},
	}, time.Minute))

	got, err := c.GetMultiJSON(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.JSONEq(t, `{"name":"B","mail":""}`, string(got["b"]))

	mr.FastForward(2 * time.Minute)
	got, err = c.GetMultiJSON(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
