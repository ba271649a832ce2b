package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisCache_SetGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, time.Minute, "pose:", zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	mock.ExpectSet("pose:k", []byte(`{"score":80,"items":null}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "k", payload{Score: 80}, 0))

	mock.ExpectGet("pose:k").SetVal(`{"score":80,"items":["a"]}`)
	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, payload{Score: 80, Items: []string{"a"}}, got)

	mock.ExpectGet("pose:missing").RedisNil()
	assert.ErrorIs(t, c.Get(ctx, "missing", &got), ErrCacheMiss)

	mock.ExpectSet("pose:short", []byte(`1`), time.Second).SetVal("OK")
	require.NoError(t, c.Set(ctx, "short", 1, time.Second))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Increment(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, time.Hour, "pose:", zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	mock.ExpectIncr("pose:count").SetVal(1)
	mock.ExpectExpire("pose:count", time.Hour).SetVal(true)
	n, err := c.Increment(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectIncr("pose:count").SetVal(2)
	n, err = c.Increment(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Stats(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCacheWithClient(db, time.Hour, "", zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	mock.ExpectGet("gone").RedisNil()
	var v int
	_ = c.Get(ctx, "gone", &v)

	mock.ExpectPing().SetVal("PONG")
	mock.ExpectDBSize().SetVal(7)
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Connected)
	assert.Equal(t, "redis", stats.Backend)
	assert.Equal(t, int64(7), stats.Items)
	assert.Equal(t, int64(1), stats.Misses)

	assert.NoError(t, mock.ExpectationsWereMet())
}
