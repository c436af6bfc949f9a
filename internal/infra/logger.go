package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "propenhance"

// NewLogger builds the service logger. Development gets a human-readable
// console writer at debug level so pipeline transitions are visible while
// iterating; every other environment emits structured JSON at info. All
// lines carry the service name so aggregated logs stay attributable.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases zerolog.Logger so packages outside infra can name the
// logging contract without importing the third-party module directly.
type Logger = zerolog.Logger
