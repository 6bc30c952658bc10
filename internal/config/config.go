package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	SessionConfig
	HTTPConfig
	StoreConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
}

type mainConfig struct {
	EnvVars
	Session
	HTTP
	Store
}

// New returns a configuration backed by environment variables and defaults.
func New() Config {
	return fromFile(FileSettings{})
}

// Load reads a YAML settings file and layers environment variables on top of
// it. An empty path skips the file. Malformed duration variables fail with
// ErrInvalidConfig.
func Load(path string) (Config, error) {
	var fs FileSettings
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fs); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := checkDurationEnv(); err != nil {
		return nil, err
	}
	return fromFile(fs), nil
}

func fromFile(fs FileSettings) Config {
	return mainConfig{
		EnvVars: EnvVars{file: fs},
		Session: Session{file: fs.Session},
		HTTP:    HTTP{file: fs.HTTP},
		Store:   Store{file: fs.Store},
	}
}
