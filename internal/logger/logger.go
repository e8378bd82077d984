package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	log = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
}

// Init reconfigures the package logger. format is "json" or "console";
// an unknown level falls back to info.
func Init(level, format string, w io.Writer) {
	log = New(level, format, w)
	zerolog.DefaultContextLogger = &log
}

// New builds a standalone logger with the same settings Init applies.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Get returns the package logger for handing to library packages.
func Get() zerolog.Logger {
	return log
}

// Nop returns a logger that discards everything. Tests use it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Debug returns a debug level event on the package logger.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info returns an info level event on the package logger.
func Info() *zerolog.Event {
	return log.Info()
}

// Warn returns a warn level event on the package logger.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error returns an error level event on the package logger.
func Error() *zerolog.Event {
	return log.Error()
}

// ScopedLogger tags every event with a scope field.
type ScopedLogger struct {
	logger zerolog.Logger
	scope  string
}

// WithScope returns a logger whose events carry scope.
func WithScope(scope string) *ScopedLogger {
	return &ScopedLogger{
		logger: log.With().Str("scope", scope).Logger(),
		scope:  scope,
	}
}

// Scope returns the scope name.
func (s *ScopedLogger) Scope() string {
	return s.scope
}

// Logger returns the underlying zerolog logger.
func (s *ScopedLogger) Logger() zerolog.Logger {
	return s.logger
}

func (s *ScopedLogger) Debug() *zerolog.Event {
	return s.logger.Debug()
}

func (s *ScopedLogger) Info() *zerolog.Event {
	return s.logger.Info()
}

func (s *ScopedLogger) Warn() *zerolog.Event {
	return s.logger.Warn()
}

func (s *ScopedLogger) Error() *zerolog.Event {
	return s.logger.Error()
}
