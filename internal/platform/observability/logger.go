package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const envLocal = "local"

// NewLogger returns a console logger for local runs and a JSON logger otherwise.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Stderr)
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	if appEnv == envLocal {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
