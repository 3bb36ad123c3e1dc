package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gallery/internal/oops"
)

func init() {
	zerolog.ErrorStackMarshaler = oops.ZerologStackMarshaler
	log.Logger = zerolog.New(NewConsoleWriter(os.Stderr))
}

// Setup points the global logger at w and applies level, which is a zerolog
// level name. Unknown or empty names fall back to info.
func Setup(w io.Writer, level string) {
	log.Logger = zerolog.New(w)
	zerolog.SetGlobalLevel(ParseLevel(level))
}

func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewConsoleWriter renders events for humans when w is a terminal-ish stream.
func NewConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
}

func GlobalLogger() *zerolog.Logger {
	return &log.Logger
}

func Debug() *zerolog.Event {
	return log.Debug().Timestamp()
}

func Info() *zerolog.Event {
	return log.Info().Timestamp()
}

func Warn() *zerolog.Event {
	return log.Warn().Timestamp()
}

func Error() *zerolog.Event {
	return log.Error().Timestamp().Stack()
}

func Fatal() *zerolog.Event {
	return log.Fatal().Timestamp().Stack()
}
