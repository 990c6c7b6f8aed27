package internal

import (
	"log"
	"os"

	"screwdiag/domain/core"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel maps a LOG_LEVEL string to a level, defaulting to info
func ParseLogLevel(value string) LogLevel {
	switch value {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging scoped to a diagnostic subject. The
// root logger carries engine-wide events; With derives a sub-logger whose
// lines identify the carrier and hole under diagnosis, so every lifecycle
// transition, drift event, and persistence failure is traceable to the
// fastening that caused it.
type Logger struct {
	level LogLevel
	scope string
}

// NewLogger creates a root logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger creates a root logger from the LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return &Logger{level: ParseLogLevel(os.Getenv("LOG_LEVEL"))}
}

// WithCarrier derives a sub-logger scoped to one carrier
func (l *Logger) WithCarrier(carrierID core.CarrierID) *Logger {
	return &Logger{
		level: l.level,
		scope: "carrier=" + carrierID.String() + " ",
	}
}

// With derives a sub-logger scoped to one hole of one carrier
func (l *Logger) With(carrierID core.CarrierID, holeID core.HoleID) *Logger {
	return &Logger{
		level: l.level,
		scope: "carrier=" + carrierID.String() + " hole=" + holeID.String() + " ",
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level >= LogLevelError {
		log.Printf("[ERROR] "+l.scope+format, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogLevelWarn {
		log.Printf("[WARN] "+l.scope+format, args...)
	}
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogLevelInfo {
		log.Printf("[INFO] "+l.scope+format, args...)
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		log.Printf("[DEBUG] "+l.scope+format, args...)
	}
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
