package config

import "time"

// FileSettings mirrors the optional YAML configuration file. Zero values
// mean "not set" and fall through to the defaults.
type FileSettings struct {
	AppName   string          `yaml:"app_name"`
	BaseURL   string          `yaml:"base_url"`
	Env       string          `yaml:"env"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Session   SessionSettings `yaml:"session"`
	HTTP      HTTPSettings    `yaml:"http"`
	Store     StoreSettings   `yaml:"store"`
}

type SessionSettings struct {
	RefreshTick      time.Duration `yaml:"refresh_tick"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold"`
	ExpirySkew       time.Duration `yaml:"expiry_skew"`
}

type HTTPSettings struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ExpiryMarker   string        `yaml:"expiry_marker"`
}

type StoreSettings struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Key    string `yaml:"key"`
}
