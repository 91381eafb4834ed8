package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv, err := NewRedis(context.Background(), client)
	require.NoError(t, err)
	return kv
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newTestRedis(t)

	_, err := kv.Get(ctx, "teacher-auth-storage")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "teacher-auth-storage", []byte(`{"state":{}}`)))
	v, err := kv.Get(ctx, "teacher-auth-storage")
	require.NoError(t, err)
	require.Equal(t, `{"state":{}}`, string(v))

	require.NoError(t, kv.Delete(ctx, "teacher-auth-storage"))
	_, err = kv.Get(ctx, "teacher-auth-storage")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(context.Background(), nil)
	require.Error(t, err)
}
