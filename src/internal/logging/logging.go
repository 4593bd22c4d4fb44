// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. Debug mode lowers the level threshold;
// structured mode emits JSON to stderr instead of the console writer.
func Setup(debug, structured bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if structured {
		out = os.Stderr
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Component returns a logger tagged with the originating component, so every
// entry carries (level, message, context) for downstream sinks.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
