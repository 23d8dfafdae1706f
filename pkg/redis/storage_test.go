package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/redis"
)

func TestStorage(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := redis.NewStorage(client, "test:")

	type doc struct {
		Name string `json:"name"`
	}

	require.NoError(t, s.SetJSON(ctx, "a", doc{Name: "x"}, time.Minute))
	assert.True(t, mr.Exists("test:a"))

	var got doc
	require.NoError(t, s.GetJSON(ctx, "a", &got))
	assert.Equal(t, "x", got.Name)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, s.GetJSON(ctx, "a", &got), redis.ErrKeyNotFound)

	require.NoError(t, mr.Set("test:bad", "{"))
	assert.ErrorIs(t, s.GetJSON(ctx, "bad", &got), redis.ErrFailedToDecodeValue)

	require.NoError(t, s.Delete(ctx, "bad"))
	assert.False(t, mr.Exists("test:bad"))
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("connects", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + mr.Addr() + "/0",
			RetryAttempts:  1,
			ConnectTimeout: time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		require.NoError(t, redis.Healthcheck(client)(context.Background()))
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "://bad", ConnectTimeout: time.Second})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + addr + "/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrRedisNotReady)
	})
}
