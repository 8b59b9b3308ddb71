package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "taskify-user", `{"email":"a@b.c"}`))
		got, err := kv.Get(ctx, "taskify-user")
		require.NoError(t, err)
		assert.Equal(t, `{"email":"a@b.c"}`, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "taskify-user", "logout"))
		got, err := kv.Get(ctx, "taskify-user")
		require.NoError(t, err)
		assert.Equal(t, "logout", got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, kv.Delete(ctx, "taskify-user"))
		require.NoError(t, kv.Delete(ctx, "taskify-user"))
		_, err := kv.Get(ctx, "taskify-user")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileKV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	exerciseKV(t, NewFileKV(dir))
}

func TestFileKV_Permissions(t *testing.T) {
	dir := t.TempDir()
	kv := NewFileKV(dir)
	require.NoError(t, kv.Set(context.Background(), "taskify-user", "secret"))

	info, err := os.Stat(filepath.Join(dir, "taskify-user"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileKV_RejectsPathKeys(t *testing.T) {
	kv := NewFileKV(t.TempDir())
	assert.Error(t, kv.Set(context.Background(), "../escape", "x"))
	_, err := kv.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := NewRedisKV(client, "")
	t.Cleanup(func() { kv.Close() })

	exerciseKV(t, kv)
}

func TestRedisKV_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := NewRedisKV(client, "")
	t.Cleanup(func() { kv.Close() })

	require.NoError(t, kv.Set(context.Background(), "taskify-has-seen-tour", "true"))
	got, err := mr.Get(DefaultRedisPrefix + "taskify-has-seen-tour")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	kv, err := DialRedis(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "k", "v"))
	got, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
