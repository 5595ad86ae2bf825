package infra

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"user-admin/internal/config"
	"user-admin/internal/shared/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDir(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"file:/var/lib/user-admin/db.sqlite?cache=shared&mode=rwc", "/var/lib/user-admin"},
		{"file:data/user-admin.db?mode=rwc", "data"},
		{"file:local.db", ""},
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDir(tt.dsn))
		})
	}
}

func TestNew_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "file:" + filepath.Join(dir, "nested", "user-admin.db") + "?cache=shared&mode=rwc",
		RedisURL:       "redis://" + mr.Addr() + "/0",
	}

	var ops []string
	i, err := New(context.Background(), cfg, Options{
		QueryObserver: func(operation, table string, _ time.Duration) { ops = append(ops, operation+" "+table) },
	})
	require.NoError(t, err)
	defer i.Close()

	assert.Nil(t, i.Avatars, "minio not configured")

	ctx := context.Background()
	require.NoError(t, i.Storage.CreateUser(ctx, &model.User{Username: "zhangsan", PasswordHash: "h"}))
	assert.Equal(t, []string{"insert users"}, ops)

	checks := i.Checks()
	require.Contains(t, checks, "database")
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["database"](ctx))
	assert.NoError(t, checks["redis"](ctx))

	mr.Close()
	assert.Error(t, checks["redis"](ctx))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    ":memory:",
		RedisURL:       "redis://127.0.0.1:1/0",
	}
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	_, err := OpenStorage(context.Background(), &config.Config{DatabaseDriver: "oracle"}, nil, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}
