package aura

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// LogLevelDebug logs everything including per-frame detail
	LogLevelDebug LogLevel = iota
	// LogLevelInfo logs informational messages and above
	LogLevelInfo
	// LogLevelWarn logs warnings and above
	LogLevelWarn
	// LogLevelError logs only errors
	LogLevelError
	// LogLevelOff disables all logging
	LogLevelOff
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF":
		return LogLevelOff
	default:
		return LogLevelInfo
	}
}

// Logger provides structured logging with configurable levels
type Logger struct {
	level  LogLevel
	prefix string
	logger *log.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		level:  level,
		prefix: "[aura]",
		logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewLoggerFromEnv creates a logger with level from AURA_LOG_LEVEL env var
func NewLoggerFromEnv() *Logger {
	level := ParseLogLevel(os.Getenv("AURA_LOG_LEVEL"))
	return NewLogger(level)
}

// SetLevel updates the logger's minimum level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// SetPrefix updates the logger's prefix
func (l *Logger) SetPrefix(prefix string) {
	l.prefix = prefix
}

// Debug logs debug-level messages
func (l *Logger) Debug(event string, fields map[string]interface{}) {
	l.log(LogLevelDebug, event, fields)
}

// Info logs info-level messages
func (l *Logger) Info(event string, fields map[string]interface{}) {
	l.log(LogLevelInfo, event, fields)
}

// Warn logs warning-level messages
func (l *Logger) Warn(event string, fields map[string]interface{}) {
	l.log(LogLevelWarn, event, fields)
}

// Error logs error-level messages
func (l *Logger) Error(event string, fields map[string]interface{}) {
	l.log(LogLevelError, event, fields)
}

// log is the internal logging method
func (l *Logger) log(level LogLevel, event string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	var fieldStrs []string
	for k, v := range fields {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, v))
	}

	fieldsStr := ""
	if len(fieldStrs) > 0 {
		fieldsStr = fmt.Sprintf(" %s", strings.Join(fieldStrs, " "))
	}

	message := fmt.Sprintf("%s [%s] %s%s", l.prefix, level.String(), event, fieldsStr)
	l.logger.Print(message)
}

// LoggerFunc returns a function compatible with Config.Logger that routes
// events through this structured logger at info level.
func (l *Logger) LoggerFunc() func(event string, fields map[string]interface{}) {
	return func(event string, fields map[string]interface{}) {
		l.Info(event, fields)
	}
}

// DefaultLogger is the package-level logger used by the LogXxx helpers.
var DefaultLogger = NewLogger(LogLevelInfo)

// LogDebug logs to the default logger at debug level.
func LogDebug(event string, fields map[string]interface{}) {
	DefaultLogger.Debug(event, fields)
}

// LogInfo logs to the default logger at info level.
func LogInfo(event string, fields map[string]interface{}) {
	DefaultLogger.Info(event, fields)
}

// LogWarn logs to the default logger at warn level.
func LogWarn(event string, fields map[string]interface{}) {
	DefaultLogger.Warn(event, fields)
}

// LogError logs to the default logger at error level.
func LogError(event string, fields map[string]interface{}) {
	DefaultLogger.Error(event, fields)
}

// ContextualLogger wraps the base Logger with fields included in every
// message, e.g. a relay session ID.
type ContextualLogger struct {
	*Logger
	context map[string]interface{}
}

// WithContext returns a logger that includes additional context in all log messages
func (l *Logger) WithContext(context map[string]interface{}) *ContextualLogger {
	return &ContextualLogger{
		Logger:  l,
		context: context,
	}
}

// mergeFields combines the contextual fields with message-specific fields
func (cl *ContextualLogger) mergeFields(fields map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for k, v := range cl.context {
		merged[k] = v
	}
	// Message fields override context on key collision
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// Debug logs debug-level messages with context
func (cl *ContextualLogger) Debug(event string, fields map[string]interface{}) {
	cl.Logger.Debug(event, cl.mergeFields(fields))
}

// Info logs info-level messages with context
func (cl *ContextualLogger) Info(event string, fields map[string]interface{}) {
	cl.Logger.Info(event, cl.mergeFields(fields))
}

// Warn logs warning-level messages with context
func (cl *ContextualLogger) Warn(event string, fields map[string]interface{}) {
	cl.Logger.Warn(event, cl.mergeFields(fields))
}

// Error logs error-level messages with context
func (cl *ContextualLogger) Error(event string, fields map[string]interface{}) {
	cl.Logger.Error(event, cl.mergeFields(fields))
}
