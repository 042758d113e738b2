// Package logger wraps zerolog construction so every component logs through
// the same sink and level configuration.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// New builds the root logger. In the local environment output is
// pretty-printed to the console; everywhere else it is structured JSON on
// stdout.
func New(env string) Logger {
	level := zerolog.InfoLevel
	if env == "local" || env == "dev" {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return log.Level(level).With().Timestamp().Logger()
}
