package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestRedisStoreSaveLoad(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))

	loaded, err := store.Load(ctx, "CA123")
	require.NoError(t, err)
	assert.Equal(t, "CA123", loaded.CallSID)
	assert.Equal(t, "+15550100", loaded.CallerNumber)
	assert.Len(t, loaded.Turns, 1)
	assert.Equal(t, "hi, how can I help?", loaded.Turns[0].Assistant)
}

func TestRedisStoreLoadNotFound(t *testing.T) {
	store, _ := newTestRedisStore(t)
	_, err := store.Load(context.Background(), "CA999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))
	require.NoError(t, store.Delete(ctx, "CA123"))

	_, err := store.Load(ctx, "CA123")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "CA123"), ErrNotFound)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "CA123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	store, mr := newTestRedisStore(t, WithPrefix("bridge"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState("CA123")))
	assert.True(t, mr.Exists("bridge:call:CA123"))
}

func TestRedisStoreInvalidInput(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidState)
	assert.ErrorIs(t, store.Save(ctx, &CallState{}), ErrInvalidID)
}
