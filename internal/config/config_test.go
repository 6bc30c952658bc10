package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	apperrors "github.com/tesla-access/tesla-client/internal/errors"
	"github.com/tesla-access/tesla-client/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	for _, v := range []string{"TESLA_BASE_URL", "TESLA_REFRESH_TICK", "TESLA_REFRESH_THRESHOLD", "TESLA_STORE", "TESLA_EXPIRY_MARKER", "TESLA_REQUEST_TIMEOUT"} {
		t.Setenv(v, "")
	}

	c := config.New()
	require.Equal(t, "http://localhost:5000", c.GetBaseURL())
	require.Equal(t, 60*time.Second, c.GetRefreshTick())
	require.Equal(t, 30*time.Minute, c.GetRefreshThreshold())
	require.Equal(t, time.Minute, c.GetExpirySkew())
	require.Equal(t, "file", c.GetStoreDriver())
	require.Equal(t, "token", c.GetExpiryMarker())
	require.Zero(t, c.GetRequestTimeout())
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("TESLA_BASE_URL", "")
	t.Setenv("TESLA_REFRESH_TICK", "")
	t.Setenv("TESLA_STORE", "")

	path := filepath.Join(t.TempDir(), "tesla.yaml")
	err := os.WriteFile(path, []byte(`
base_url: https://tesla.example.com
session:
  refresh_tick: 15s
  refresh_threshold: 10m
store:
  driver: sqlite
  path: /tmp/tesla.db
`), 0o600)
	require.NoError(t, err)

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://tesla.example.com", c.GetBaseURL())
	require.Equal(t, 15*time.Second, c.GetRefreshTick())
	require.Equal(t, 10*time.Minute, c.GetRefreshThreshold())
	require.Equal(t, "sqlite", c.GetStoreDriver())
	require.Equal(t, "/tmp/tesla.db", c.GetStorePath())

	t.Setenv("TESLA_REFRESH_TICK", "5s")
	t.Setenv("TESLA_BASE_URL", "http://override:8080")
	require.Equal(t, 5*time.Second, c.GetRefreshTick())
	require.Equal(t, "http://override:8080", c.GetBaseURL())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TESLA_REFRESH_THRESHOLD", "")
	t.Setenv("TESLA_EXPIRY_SKEW", "")
	t.Setenv("TESLA_REFRESH_TICK", "soon")
	_, err := config.Load("")
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	require.ErrorContains(t, err, "TESLA_REFRESH_TICK")

	t.Setenv("TESLA_REFRESH_TICK", "90s")
	t.Setenv("TESLA_REQUEST_TIMEOUT", "-1s")
	_, err = config.Load("")
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	t.Setenv("TESLA_REQUEST_TIMEOUT", "")
	c, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, c.GetRefreshTick())
}

func TestGetDurationEnv_Unparsable(t *testing.T) {
	t.Setenv("TESLA_TEST_DURATION", "soon")
	require.Equal(t, time.Second, config.GetDurationEnv("TESLA_TEST_DURATION", time.Second))
}
