package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	store := NewRedisStore(rdb, "")
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)

	issued := time.Now().Truncate(time.Second)
	require.NoError(t, store.Put(ctx, "client-a", CachedToken{AccessToken: "tok", IssuedAt: issued, ExpiresIn: 600}))

	got, ok, err := store.Get(ctx, "client-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", got.AccessToken)
	assert.True(t, issued.Equal(got.IssuedAt))
	assert.Equal(t, 600, got.ExpiresIn)

	ttl := mr.TTL(defaultRedisPrefix + "client-a")
	assert.Greater(t, ttl, 590*time.Second)
	assert.LessOrEqual(t, ttl, 600*time.Second)

	mr.FastForward(601 * time.Second)
	_, ok, err = store.Get(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_SkipsExpiredTokens(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	store := NewRedisStore(rdb, "p:")

	require.NoError(t, store.Put(context.Background(), "k", CachedToken{AccessToken: "old", IssuedAt: time.Now().Add(-time.Hour), ExpiresIn: 60}))
	assert.False(t, mr.Exists("p:k"))
}

func TestRedisStore_SharedBetweenReplicas(t *testing.T) {
	t.Parallel()
	_, rdb := newMiniRedis(t)
	ts := newTokenServer(t)

	replica1 := New(NewClientCredentials(ts.URL, ""), testClients, WithHTTPClient(ts.Client()), WithStore(NewRedisStore(rdb, "")))
	replica2 := New(NewClientCredentials(ts.URL, ""), testClients, WithHTTPClient(ts.Client()), WithStore(NewRedisStore(rdb, "")))

	tok1, err := replica1.AccessToken(context.Background(), "client-a")
	require.NoError(t, err)
	tok2, err := replica2.AccessToken(context.Background(), "client-a")
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, ts.calls.Load())
}

func TestRedisStore_CorruptEntryIsAMiss(t *testing.T) {
	t.Parallel()
	mr, rdb := newMiniRedis(t)
	require.NoError(t, mr.Set(defaultRedisPrefix+"client-a", "{broken"))
	ts := newTokenServer(t)
	b := New(NewClientCredentials(ts.URL, ""), testClients, WithHTTPClient(ts.Client()), WithStore(NewRedisStore(rdb, "")))

	tok, err := b.AccessToken(context.Background(), "client-a")
	require.NoError(t, err)
	assert.Equal(t, "a-secret-token-1", tok)
}
