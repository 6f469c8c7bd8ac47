// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger, or a console logger when format is "console" or
// the service is not running in production and no format was requested.
func New(level, format string, production bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, production)
}

func NewWithWriter(w io.Writer, level, format string, production bool) zerolog.Logger {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" || (format == "" && !production) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "cliniccompass").Logger()
}
