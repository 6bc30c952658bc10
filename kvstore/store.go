// Package kvstore is the durable string store that keeps the refresh token
// between runs.
package kvstore

import (
	"context"
	"encoding/hex"
	"fmt"

	apperrors "github.com/tesla-access/tesla-client/internal/errors"
)

// Well-known keys.
const (
	RefreshTokenKey     = "refreshToken"
	ThemePaletteModeKey = "themePaletteMode"
)

// Store is a synchronous string key-value store. Get returns "" for a
// missing key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open builds the Store selected by driver. hexKey, when non-empty, seals
// the file store and is ignored by the other drivers.
func Open(ctx context.Context, driver, path, hexKey string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		var opts []FileStoreOption
		if hexKey != "" {
			key, err := hex.DecodeString(hexKey)
			if err != nil {
				return nil, fmt.Errorf("decode store key: %w", err)
			}
			opts = append(opts, WithSealKey(key))
		}
		return NewFileStore(path, opts...)
	case DriverSQLite:
		return NewSQLiteStore(ctx, path)
	}
	return nil, apperrors.Wrapf(apperrors.ErrUnknownDriver, "open %q", driver)
}
