// Wraps zerolog logger, ensuring the timestamp goes in the beginning.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

type Logger interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	With(key, value string) Logger
}

var logger zerolog.Logger

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.DurationFieldInteger = true
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger = zerolog.New(os.Stderr).With().Stack().Logger().Level(zerolog.InfoLevel)
}

func SetVerbose(verbose bool) {
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

func Debug() *zerolog.Event {
	return logger.Debug().Timestamp()
}

func Info() *zerolog.Event {
	return logger.Info().Timestamp()
}

func Warn() *zerolog.Event {
	return logger.Warn().Timestamp()
}

func Error() *zerolog.Event {
	return logger.Error().Timestamp()
}

// Default returns a Logger backed by the package-level logger.
func Default() Logger {
	return &zeroLogger{impl: logger}
}

// New returns a Logger writing to w. Tests pass io.Discard or a buffer.
func New(w io.Writer) Logger {
	return &zeroLogger{impl: zerolog.New(w).With().Stack().Logger()}
}

type zeroLogger struct {
	impl zerolog.Logger
}

func (l *zeroLogger) Debug() *zerolog.Event {
	return l.impl.Debug().Timestamp()
}

func (l *zeroLogger) Info() *zerolog.Event {
	return l.impl.Info().Timestamp()
}

func (l *zeroLogger) Warn() *zerolog.Event {
	return l.impl.Warn().Timestamp()
}

func (l *zeroLogger) Error() *zerolog.Event {
	return l.impl.Error().Timestamp()
}

func (l *zeroLogger) With(key, value string) Logger {
	return &zeroLogger{impl: l.impl.With().Str(key, value).Logger()}
}
