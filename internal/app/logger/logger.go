package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Both binaries log through it.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init applies the configured level and switches to console output for
// local runs.
func Init(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	Logger = Logger.Level(lvl)
	if pretty {
		Logger = Logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}
