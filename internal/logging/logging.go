package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewWithWriter creates a zerolog.Logger writing to w.
//
// format: "console" (human-readable) or "json" (structured).
func NewWithWriter(level zerolog.Level, format string, w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel converts a string log level to a zerolog.Level.
// Unrecognized values yield InfoLevel.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
