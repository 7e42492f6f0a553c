package util

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	currentLevel atomic.Int32
	logger       atomic.Pointer[zerolog.Logger]
)

func init() {
	currentLevel.Store(int32(LogLevelInfo))
	SetOutput(os.Stderr)
}

// SetOutput redirects all log output to w using the console format.
func SetOutput(w io.Writer) {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: true}).
		With().Timestamp().Logger()
	logger.Store(&zl)
}

func SetLevel(level LogLevel) {
	currentLevel.Store(int32(level))
}

func Level() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Logger exposes the underlying zerolog logger for structured call sites.
func Logger() *zerolog.Logger {
	return logger.Load()
}

func enabled(level LogLevel) bool {
	return Level() <= level
}

func Debug(format string, v ...interface{}) {
	if enabled(LogLevelDebug) {
		logger.Load().Debug().Msgf(format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if enabled(LogLevelInfo) {
		logger.Load().Info().Msgf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if enabled(LogLevelWarn) {
		logger.Load().Warn().Msgf(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if enabled(LogLevelError) {
		logger.Load().Error().Msgf(format, v...)
	}
}

func Fatal(format string, v ...interface{}) {
	logger.Load().WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, v...))
	os.Exit(1)
}
