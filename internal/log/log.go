// Package log provides railtopo's structured logger: zerolog, written as
// JSON to stderr in production and as a human-readable console stream when
// stderr is a terminal.
package log

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds the process-wide logger. levelName is parsed with
// zerolog.ParseLevel ("debug", "info", "warn", "error"); an unrecognized
// value falls back to info.
func New(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writer = os.Stderr
	if isatty.IsTerminal(writer.Fd()) {
		console := zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
		return zerolog.New(console).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
