// Package logging configures the global zerolog logger for the CLI and library.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger from environment variables.
// GEMINI_LOG_LEVEL controls the level: trace, debug, info, warn, error (default: info).
// GEMINI_LOG_JSON=1 keeps raw JSON output instead of the console writer, so
// log lines and metric lines share one machine-readable stream.
func Init() {
	switch os.Getenv("GEMINI_LOG_LEVEL") {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if os.Getenv("GEMINI_LOG_JSON") != "1" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
