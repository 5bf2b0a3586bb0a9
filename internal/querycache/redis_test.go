package querycache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreVersionAndBump(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ver, err := store.Version(ctx, "connection")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	ver, err = store.Bump(ctx, "connection")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ver)

	raw, err := mr.Get(versionKeyPrefix + "connection")
	require.NoError(t, err)
	assert.Equal(t, "2", raw)
}

func TestRedisStoreEntryTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte(`{"a":1}`), time.Second))
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got))

	mr.FastForward(2 * time.Second)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestRedisCacheInvalidationAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New(NewRedisStore(newClient()), Options{})
	b := New(NewRedisStore(newClient()), Options{})

	var calls int32
	load := countingLoader(&calls, page{Total: 1}, nil)

	_, err := a.Query(ctx, "privacy-request", "page=1", load)
	require.NoError(t, err)
	_, err = b.Query(ctx, "privacy-request", "page=1", load)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "replica b reads the shared entry")

	received := make(chan string, 1)
	sub := NewRedisStore(newClient())
	require.NoError(t, sub.Subscribe(ctx, func(resource string) { received <- resource }))

	require.NoError(t, a.Invalidate(ctx, "privacy-request"))
	select {
	case res := <-received:
		assert.Equal(t, "privacy-request", res)
	case <-time.After(time.Second):
		t.Fatal("bump not announced")
	}

	_, err = b.Query(ctx, "privacy-request", "page=1", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
