package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages outside infra depend on the
// logging contract rather than the module.
type Logger = zerolog.Logger

// NewLogger builds the service logger. Development gets debug output on a
// console writer; level, when set, overrides the environment default.
func NewLogger(appEnv, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).
		Level(logLevel(appEnv, level)).
		With().
		Timestamp().
		Str("service", "autovideo").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger
}

// NopLogger returns a logger that discards everything.
func NopLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func logLevel(appEnv, level string) zerolog.Level {
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		return parsed
	}
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
