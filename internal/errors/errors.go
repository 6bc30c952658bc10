package errors

import (
	"errors"
	"fmt"
)

// Common error types for the TESLA client
var (
	// Credential errors
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrRefreshFailed  = errors.New("unable to refresh access token")
	ErrRepeatedExpiry = errors.New("access token rejected after refresh")

	// Storage errors
	ErrUnknownDriver = errors.New("unknown store driver")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
