// Package logx is a thin structured-logging facade over zerolog so call
// sites stay stable if the backend changes.
package logx

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog levels under a local name.
type Level int8

const (
	LevelTrace Level = iota - 1
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Fields is a bag of structured log fields.
type Fields map[string]any

var (
	mu     sync.RWMutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// SetLevel sets the global minimum level.
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// UseJSON switches the root logger to plain JSON output, for production
// where console formatting is unwanted.
func UseJSON() {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func root() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Entry is a log event builder carrying accumulated fields.
type Entry struct {
	logger zerolog.Logger
}

// WithField returns an entry with one field attached.
func WithField(key string, value any) *Entry {
	return &Entry{logger: root().With().Interface(key, value).Logger()}
}

// WithFields returns an entry with all given fields attached.
func WithFields(fields Fields) *Entry {
	ctx := root().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Entry{logger: ctx.Logger()}
}

// WithError returns an entry with the error attached.
func WithError(err error) *Entry {
	return &Entry{logger: root().With().AnErr("error", err).Logger()}
}

func (e *Entry) WithField(key string, value any) *Entry {
	return &Entry{logger: e.logger.With().Interface(key, value).Logger()}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{logger: e.logger.With().AnErr("error", err).Logger()}
}

func (e *Entry) Trace(msg string) { e.logger.Trace().Msg(msg) }
func (e *Entry) Debug(msg string) { e.logger.Debug().Msg(msg) }
func (e *Entry) Info(msg string)  { e.logger.Info().Msg(msg) }
func (e *Entry) Warn(msg string)  { e.logger.Warn().Msg(msg) }
func (e *Entry) Error(msg string) { e.logger.Error().Msg(msg) }

func (e *Entry) Debugf(format string, args ...any) { e.logger.Debug().Msgf(format, args...) }
func (e *Entry) Infof(format string, args ...any)  { e.logger.Info().Msgf(format, args...) }
func (e *Entry) Warnf(format string, args ...any)  { e.logger.Warn().Msgf(format, args...) }
func (e *Entry) Errorf(format string, args ...any) { e.logger.Error().Msgf(format, args...) }

// Package-level shortcuts.

func Trace(msg string) { root().Trace().Msg(msg) }
func Debug(msg string) { root().Debug().Msg(msg) }
func Info(msg string)  { root().Info().Msg(msg) }
func Warn(msg string)  { root().Warn().Msg(msg) }
func Error(msg string) { root().Error().Msg(msg) }

func Debugf(format string, args ...any) { root().Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { root().Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { root().Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { root().Error().Msgf(format, args...) }

// Fatalf logs at fatal level and exits.
func Fatalf(format string, args ...any) { root().Fatal().Msgf(format, args...) }
