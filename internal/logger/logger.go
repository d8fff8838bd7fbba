package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	"github.com/rs/zerolog"
)

var log = &zeroLogger{l: zerolog.Nop()}

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// ParseLevel maps a configured level name onto a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch level {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zeroLogger struct {
	l zerolog.Logger
}

// Init initializes the default logger based on the given configuration
func Init(level string, isService bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = &zeroLogger{l: zerolog.New(output).With().Timestamp().Logger()}
	SetLogLevel(lvl)

	return nil
}

// New returns a JSON logger writing to w, independent of the default logger.
func New(w io.Writer, level LogLevel) Logger {
	return &zeroLogger{l: zerolog.New(w).Level(zerolog.Level(level)).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zeroLogger{l: zerolog.Nop()}
}

// Default returns the process-wide logger configured by Init.
func Default() Logger {
	return log
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func (z *zeroLogger) Debug() *LogEvent {
	return &LogEvent{z.l.Debug()}
}

func (z *zeroLogger) Info() *LogEvent {
	return &LogEvent{z.l.Info()}
}

func (z *zeroLogger) Warn() *LogEvent {
	return &LogEvent{z.l.Warn()}
}

func (z *zeroLogger) Error() *LogEvent {
	return &LogEvent{z.l.Error()}
}

func (z *zeroLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(z.l.Error(), err)}
}

func (z *zeroLogger) WithComponent(component string) Logger {
	return &zeroLogger{l: z.l.With().Str("component", component).Logger()}
}

func withCode(ev *zerolog.Event, err errors.Error) *zerolog.Event {
	return ev.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())
}

// Debug logs a debug message
func Debug() *LogEvent {
	return log.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return log.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return log.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return log.Error()
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return log.ErrorWithCode(err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.l.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.l.Fatal(), err)}
}
