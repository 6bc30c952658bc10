package config

import (
	"os"
	"path/filepath"

	"github.com/tesla-access/tesla-client/internal/utils"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetStoreKey() string
}

type Store struct {
	file StoreSettings
}

var _ StoreConfig = Store{}

// GetStoreDriver is one of "file", "sqlite" or "memory".
func (s Store) GetStoreDriver() string {
	return GetEnv("TESLA_STORE", utils.FirstNonEmpty(s.file.Driver, "file"))
}

func (s Store) GetStorePath() string {
	return GetEnv("TESLA_STORE_PATH", utils.FirstNonEmpty(s.file.Path, defaultStorePath()))
}

// GetStoreKey returns the hex-encoded key used to seal the file store.
// Empty means the file is written in the clear.
func (s Store) GetStoreKey() string {
	return GetEnv("TESLA_STORE_KEY", s.file.Key)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "session.json")
	}
	return filepath.Join(home, ".tesla", "session.json")
}
