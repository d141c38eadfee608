package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface
type ZerologLogger struct {
	logger zerolog.Logger
	level  Level
}

// NewZerologLogger creates a Logger backed by zerolog
func NewZerologLogger(zl zerolog.Logger, level Level) *ZerologLogger {
	return &ZerologLogger{
		logger: zl,
		level:  level,
	}
}

// Debug logs debug message
func (l *ZerologLogger) Debug(format string, args ...interface{}) {
	if l.level <= LevelDebug {
		l.logger.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// Info logs info message
func (l *ZerologLogger) Info(format string, args ...interface{}) {
	if l.level <= LevelInfo {
		l.logger.Info().Msg(fmt.Sprintf(format, args...))
	}
}

// Warn logs warning message
func (l *ZerologLogger) Warn(format string, args ...interface{}) {
	if l.level <= LevelWarn {
		l.logger.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Error logs error message
func (l *ZerologLogger) Error(format string, args ...interface{}) {
	if l.level <= LevelError {
		l.logger.Error().Msg(fmt.Sprintf(format, args...))
	}
}

// SetLevel sets the logging level
func (l *ZerologLogger) SetLevel(level Level) {
	l.level = level
}
