package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/tilecore/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "test:save:", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rs, _ := setupTestRedis(t)
	out := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": db,
		"redis":  rs,
	}
	// PostgreSQL runs only against a real server.
	if dsn := os.Getenv("TILECORE_TEST_POSTGRES_URL"); dsn != "" {
		pg, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		wipe := func() {
			for _, slot := range []string{"slot1", "autosave"} {
				_ = pg.Delete(context.Background(), slot)
			}
		}
		wipe()
		t.Cleanup(func() {
			wipe()
			_ = pg.Close()
		})
		out["postgres"] = pg
	}
	return out
}

func TestStore_Conformance(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"version":"1","slot":"slot1","vars":{"unlocked_the_door":{"type":"bool","bool":true}}}`)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "slot1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "slot1", payload))
			got, err := s.Get(ctx, "slot1")
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			require.NoError(t, s.Put(ctx, "slot1", []byte("v2")))
			got, err = s.Get(ctx, "slot1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, s.Put(ctx, "autosave", payload))
			slots, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"autosave", "slot1"}, slots)

			require.NoError(t, s.Delete(ctx, "slot1"))
			_, err = s.Get(ctx, "slot1")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "never-written"))

			assert.Error(t, s.Put(ctx, "../escape", payload))
			assert.Error(t, s.Put(ctx, "", payload))
		})
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "slot1", buf))
	buf[0] = 'x'
	got, _ := s.Get(ctx, "slot1")
	assert.Equal(t, "abc", string(got))
}

func TestFileStore_Compressed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	big := make([]byte, 64*1024)
	require.NoError(t, s.Put(ctx, "slot1", big))

	matches, err := filepath.Glob(filepath.Join(dir, "*"+fileExt))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	got, err := s.Get(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func TestRedisStore_Prefix(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)
	require.NoError(t, s.Put(ctx, "slot1", []byte("data")))
	assert.True(t, mr.Exists("test:save:slot1"))

	// Keys outside the prefix are not slots.
	require.NoError(t, mr.Set("other:key", "x"))
	slots, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot1"}, slots)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), "redis://"+addr, "x:", quietLogger())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	cfg.SaveBackend = config.BackendMemory
	s, err := Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.SaveBackend = config.BackendFile
	cfg.SaveDir = t.TempDir()
	s, err = Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	cfg.SaveBackend = config.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "x.db")
	s, err = Open(ctx, cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.SaveBackend = "tape"
	_, err = Open(ctx, cfg, quietLogger())
	assert.Error(t, err)
}
