package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// The global Logger. Comes configured with some sensible defaults for e.g. unit tests, but applications should
// generally configure their own logging config via ConfigureApplicationLogging
var stdLogger = createDefaultLogger()

// ReplaceStdLogger Replaces the global logger. This should be called once at app startup!
func ReplaceStdLogger(l *Logger) {
	stdLogger = l
}

// StdLogger Returns the default logger
func StdLogger() *Logger {
	return stdLogger
}

// Debug logs a message at level Debug.
func Debug(args ...any) {
	stdLogger.Debug(args...)
}

// Info logs a message at level Info.
func Info(args ...any) {
	stdLogger.Info(args...)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...any) {
	stdLogger.Warn(args...)
}

// Error logs a message at level Error on the standard logger.
func Error(args ...any) {
	stdLogger.Error(args...)
}

// Fatal logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatal(args ...any) {
	stdLogger.Fatal(args...)
}

func Debugf(format string, args ...any) {
	stdLogger.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	stdLogger.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	stdLogger.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	stdLogger.Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	stdLogger.Fatalf(format, args...)
}

// WithField returns a new Logger with the key-value pair added as a new field
func WithField(key string, value any) *Logger {
	return stdLogger.WithField(key, value)
}

// WithFields returns a new Logger with all key-value pairs in the map added as new fields
func WithFields(args map[string]any) *Logger {
	return stdLogger.WithFields(args)
}

// WithError returns a new Logger with the error added as a field
func WithError(err error) *Logger {
	return stdLogger.WithError(err)
}

// WithStacktrace returns a new Logger with the error and (if available) the stacktrace added as fields
func WithStacktrace(err error) *Logger {
	return stdLogger.WithStacktrace(err)
}

func createDefaultLogger() *Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return FromZerolog(zerolog.New(writer).With().Timestamp().Logger())
}
