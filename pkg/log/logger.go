package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// FormatConsole writes colored human-readable lines.
	FormatConsole = "console"
	// FormatJSON writes one JSON object per line.
	FormatJSON = "json"

	consoleTimeFormat = "15:04:05"
	serviceName       = "filesvc"
)

var Logger zerolog.Logger

func init() {
	Logger = newLogger(os.Stderr, FormatConsole, zerolog.InfoLevel)
	log.Logger = Logger
}

func newLogger(out io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: consoleTimeFormat,
		}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Configure rebuilds the package logger with the given level and output format.
// An empty level keeps info.
func Configure(out io.Writer, level, format string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch format {
	case "", FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	Logger = newLogger(out, format, lvl)
	log.Logger = Logger
	return nil
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}
