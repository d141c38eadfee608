package irblaster

import (
	"github.com/rs/zerolog"

	"kodalissri/irblaster-go/pkg/internal/logger"
)

// Logger is the logging interface the whole stack consumes
type Logger = logger.Logger

// LogLevel represents logging level
type LogLevel int

const (
	// LevelDebug shows all log messages (most verbose)
	LevelDebug LogLevel = iota
	// LevelInfo shows info, warn, and error messages (default)
	LevelInfo
	// LevelWarn shows warn and error messages
	LevelWarn
	// LevelError shows only error messages
	LevelError
)

// SetLogLevel sets the global logging level
// This affects components created without an explicit logger.
func SetLogLevel(level LogLevel) {
	logger.SetDefault(logger.NewDefaultLogger(logger.Level(level)))
}

// NewLogger creates a plain stdout logger
func NewLogger(level LogLevel) Logger {
	return logger.NewDefaultLogger(logger.Level(level))
}

// NewZerologLogger creates a structured logger backed by zerolog
func NewZerologLogger(zl zerolog.Logger, level LogLevel) Logger {
	return logger.NewZerologLogger(zl, logger.Level(level))
}
