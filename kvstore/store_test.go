package kvstore_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	apperrors "github.com/tesla-access/tesla-client/internal/errors"
	"github.com/tesla-access/tesla-client/kvstore"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s kvstore.Store) {
	t.Helper()

	v, err := s.Get(kvstore.RefreshTokenKey)
	require.NoError(t, err)
	require.Empty(t, v, "missing key reads as empty")

	require.NoError(t, s.Set(kvstore.RefreshTokenKey, "abc"))
	require.NoError(t, s.Set(kvstore.ThemePaletteModeKey, "dark"))

	v, err = s.Get(kvstore.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	require.NoError(t, s.Set(kvstore.RefreshTokenKey, ""))
	v, err = s.Get(kvstore.RefreshTokenKey)
	require.NoError(t, err)
	require.Empty(t, v)

	v, err = s.Get(kvstore.ThemePaletteModeKey)
	require.NoError(t, err)
	require.Equal(t, "dark", v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, kvstore.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := kvstore.NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second handle sees the persisted values.
	reopened, err := kvstore.NewFileStore(path)
	require.NoError(t, err)
	v, err := reopened.Get(kvstore.ThemePaletteModeKey)
	require.NoError(t, err)
	require.Equal(t, "dark", v)
}

func TestFileStore_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := kvstore.NewFileStore(path, kvstore.WithSealKey(testKey(1)))
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Set(kvstore.RefreshTokenKey, "secret-refresh"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "secret-refresh"))

	wrongKey, err := kvstore.NewFileStore(path, kvstore.WithSealKey(testKey(2)))
	require.NoError(t, err)
	_, err = wrongKey.Get(kvstore.RefreshTokenKey)
	require.ErrorIs(t, err, kvstore.ErrStoreUnsealFailed)

	sameKey, err := kvstore.NewFileStore(path, kvstore.WithSealKey(testKey(1)))
	require.NoError(t, err)
	v, err := sameKey.Get(kvstore.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "secret-refresh", v)
}

func TestFileStore_SealedPathSpelling(t *testing.T) {
	dir := t.TempDir()
	abs, err := kvstore.NewFileStore(filepath.Join(dir, "s.json"), kvstore.WithSealKey(testKey(3)))
	require.NoError(t, err)
	require.NoError(t, abs.Set(kvstore.RefreshTokenKey, "abc"))

	t.Chdir(dir)
	for _, path := range []string{"s.json", "./s.json", filepath.Join("..", filepath.Base(dir), "s.json")} {
		rel, err := kvstore.NewFileStore(path, kvstore.WithSealKey(testKey(3)))
		require.NoError(t, err)
		v, err := rel.Get(kvstore.RefreshTokenKey)
		require.NoError(t, err, path)
		require.Equal(t, "abc", v, path)
	}

	rel, err := kvstore.NewFileStore("s.json", kvstore.WithSealKey(testKey(3)))
	require.NoError(t, err)
	require.NoError(t, rel.Set(kvstore.RefreshTokenKey, "def"))
	v, err := abs.Get(kvstore.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "def", v)
}

func TestFileStore_InvalidKey(t *testing.T) {
	_, err := kvstore.NewFileStore(filepath.Join(t.TempDir(), "s.json"), kvstore.WithSealKey([]byte("short")))
	require.ErrorIs(t, err, kvstore.ErrInvalidSealKey)
}

func TestSQLiteStore(t *testing.T) {
	s, err := kvstore.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := kvstore.Open(ctx, kvstore.DriverMemory, "", "")
	require.NoError(t, err)
	require.IsType(t, &kvstore.MemoryStore{}, s)

	s, err = kvstore.Open(ctx, kvstore.DriverFile, filepath.Join(dir, "a.json"), strings.Repeat("ab", 32))
	require.NoError(t, err)
	require.IsType(t, &kvstore.FileStore{}, s)

	_, err = kvstore.Open(ctx, kvstore.DriverFile, filepath.Join(dir, "b.json"), "not-hex")
	require.Error(t, err)

	s, err = kvstore.Open(ctx, kvstore.DriverSQLite, filepath.Join(dir, "kv.db"), "")
	require.NoError(t, err)
	require.IsType(t, &kvstore.SQLiteStore{}, s)
	s.(*kvstore.SQLiteStore).Close()

	_, err = kvstore.Open(ctx, "redis", "", "")
	require.ErrorIs(t, err, apperrors.ErrUnknownDriver)
}
