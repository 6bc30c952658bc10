package config

import (
	"os"
	"time"

	apperrors "github.com/tesla-access/tesla-client/internal/errors"
	"github.com/tesla-access/tesla-client/internal/utils"
)

const (
	appNameVar   = "TESLA_APP_NAME"
	baseURLVar   = "TESLA_BASE_URL"
	logLevelVar  = "TESLA_LOG_LEVEL"
	logFormatVar = "TESLA_LOG_FORMAT"

	refreshTickVar      = "TESLA_REFRESH_TICK"
	refreshThresholdVar = "TESLA_REFRESH_THRESHOLD"
	expirySkewVar       = "TESLA_EXPIRY_SKEW"
	requestTimeoutVar   = "TESLA_REQUEST_TIMEOUT"
)

var durationVars = []string{refreshTickVar, refreshThresholdVar, expirySkewVar, requestTimeoutVar}

type EnvVars struct {
	file FileSettings
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, utils.FirstNonEmpty(e.file.AppName, "TESLA"))
}

// GetBaseURL returns the TESLA backend origin (e.g., "https://tesla.example.com").
// API paths such as /api/auth/login are appended to it.
func (e EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, utils.FirstNonEmpty(e.file.BaseURL, "http://localhost:5000"))
}

func (e EnvVars) GetEnv() string {
	return GetEnv("ENV", utils.FirstNonEmpty(e.file.Env, "DEV"))
}

func (e EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, utils.FirstNonEmpty(e.file.LogLevel, "info"))
}

func (e EnvVars) GetLogFormat() string {
	return GetEnv(logFormatVar, utils.FirstNonEmpty(e.file.LogFormat, "console"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDurationEnv parses envVar as a time.Duration ("90s", "30m").
// Unset or unparsable values yield defaultValue; Load rejects the latter.
func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// checkDurationEnv rejects duration variables that are set but are not a
// non-negative duration.
func checkDurationEnv() error {
	for _, name := range durationVars {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return apperrors.Wrapf(apperrors.ErrInvalidConfig, "%s=%q", name, value)
		}
	}
	return nil
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v == 0 {
		return fallback
	}
	return v
}
