package config

import (
	"time"

	"github.com/tesla-access/tesla-client/internal/utils"
)

type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetExpiryMarker() string
}

type HTTP struct {
	file HTTPSettings
}

var _ HTTPConfig = HTTP{}

// GetRequestTimeout returns 0 (no client-side timeout) unless configured.
func (h HTTP) GetRequestTimeout() time.Duration {
	return GetDurationEnv(requestTimeoutVar, h.file.RequestTimeout)
}

func (h HTTP) GetExpiryMarker() string {
	return GetEnv("TESLA_EXPIRY_MARKER", utils.FirstNonEmpty(h.file.ExpiryMarker, "token"))
}
