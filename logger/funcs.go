package logger

import "go.uber.org/zap"

// Package-level logging functions delegating to the global Logger, so
// packages without an injected logger can still log consistently.

// Info logs at info level
func Info(args ...interface{}) {
	Logger.Info(args...)
}

// Infof logs a formatted message at info level
func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Infow logs a message with key-value pairs at info level
func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

// Warn logs at warn level
func Warn(args ...interface{}) {
	Logger.Warn(args...)
}

// Warnf logs a formatted message at warn level
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

// Warnw logs a message with key-value pairs at warn level
func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

// Error logs at error level
func Error(args ...interface{}) {
	Logger.Error(args...)
}

// Errorf logs a formatted message at error level
func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}

// Errorw logs a message with key-value pairs at error level
func Errorw(msg string, keysAndValues ...interface{}) {
	Logger.Errorw(msg, keysAndValues...)
}

// Debug logs at debug level
func Debug(args ...interface{}) {
	Logger.Debug(args...)
}

// Debugf logs a formatted message at debug level
func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

// Debugw logs a message with key-value pairs at debug level
func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}

// ComponentLogger returns a named child of the global logger for a
// component (e.g. "server", "pulse").
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
