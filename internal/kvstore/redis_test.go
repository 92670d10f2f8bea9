package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedis(RedisOptions{
		Address:     mr.Addr(),
		DialTimeout: time.Second,
		IOTimeout:   time.Second,
	})
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedis_SetGetDelete(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "ratelimit:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "ratelimit:1.2.3.4", []byte(`{"tokens":1}`), time.Minute))

	value, found, err := store.Get(ctx, "ratelimit:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"tokens":1}`, string(value))
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:1.2.3.4"))

	require.NoError(t, store.Delete(ctx, "ratelimit:1.2.3.4"))
	assert.False(t, mr.Exists("ratelimit:1.2.3.4"))
}

func TestRedis_Expiry(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 2*time.Second))
	mr.FastForward(3 * time.Second)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_UnreachableIsUnavailable(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, store.Ping(context.Background()), ErrUnavailable)
}

func TestRedis_ServerErrorIsNotUnavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisWithClient(db)

	mock.ExpectGet("k").SetErr(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))

	_, _, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SetPassesTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisWithClient(db)

	mock.ExpectSet("k", []byte("v"), 120*time.Second).SetVal("OK")
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), 120*time.Second))

	mock.ExpectSet("k", []byte("v"), 0).SetErr(redis.ErrClosed)
	err := store.Set(context.Background(), "k", []byte("v"), -time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}
