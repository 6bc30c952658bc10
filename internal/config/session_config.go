package config

import "time"

type SessionConfig interface {
	GetRefreshTick() time.Duration
	GetRefreshThreshold() time.Duration
	GetExpirySkew() time.Duration
}

type Session struct {
	file SessionSettings
}

var _ SessionConfig = Session{}

// GetRefreshTick is how often the periodic refresher wakes up.
func (s Session) GetRefreshTick() time.Duration {
	return GetDurationEnv(refreshTickVar, durationOr(s.file.RefreshTick, 60*time.Second))
}

// GetRefreshThreshold is the minimum age of an access token before the
// periodic refresher replaces it.
func (s Session) GetRefreshThreshold() time.Duration {
	return GetDurationEnv(refreshThresholdVar, durationOr(s.file.RefreshThreshold, 30*time.Minute))
}

// GetExpirySkew refreshes early when the access token's exp claim is this close.
func (s Session) GetExpirySkew() time.Duration {
	return GetDurationEnv(expirySkewVar, durationOr(s.file.ExpirySkew, time.Minute))
}
