// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr through zerolog's console
// writer, with optional timestamps and bracketed level prefixes.
type Logger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timestamps bool // if true, prepend HH:MM:SS.mmm timestamps
	zl         zerolog.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger().Info().Msgf(format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logger().Warn().Msgf(format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.logger().Debug().Msgf(format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger().Trace().Msgf(format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger().Error().Msgf(format, args...)
}

// Fatal prints the message and terminates the process with status 1.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.logger().Fatal().Msgf(format, args...)
}

func (l *Logger) logger() *zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	zl := l.zl
	return &zl
}

// rebuild must be called with l.mu held (or before l is shared).
func (l *Logger) rebuild() {
	cw := zerolog.ConsoleWriter{
		Out:         zerolog.SyncWriter(l.output),
		NoColor:     !isTerminal(l.output),
		TimeFormat:  "15:04:05.000",
		FormatLevel: formatLevel,
	}
	if !l.timestamps {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	zl := zerolog.New(cw).Level(zerologLevel(l.level))
	if l.timestamps {
		zl = zl.With().Timestamp().Logger()
	}
	l.zl = zl
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch {
	case level <= LogQuiet:
		return zerolog.ErrorLevel
	case level == LogNormal:
		return zerolog.InfoLevel
	case level == LogVerbose:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// formatLevel renders zerolog levels with the short tags used across
// the server's logs.  Verbose maps onto zerolog's debug level and Debug
// onto trace.
func formatLevel(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelTraceValue:
		return "[DBG]"
	case zerolog.LevelDebugValue:
		return "[VRB]"
	case zerolog.LevelInfoValue:
		return "[INF]"
	case zerolog.LevelWarnValue:
		return "[WRN]"
	case zerolog.LevelErrorValue:
		return "[ERR]"
	case zerolog.LevelFatalValue:
		return "[FTL]"
	}
	return "[" + strings.ToUpper(s) + "]"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
