package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts (-v, -vv, ...).
const (
	VerbosityUser  = 0 // no flags: results, warnings, errors
	VerbosityInfo  = 1 // -v: + progress, startup, job lifecycle
	VerbosityDebug = 2 // -vv: + queries, version comparisons, timing
	VerbosityTrace = 3 // -vvv: + per-payload normalization detail
)

// VerbosityToLevel maps verbosity flag counts to zap log levels.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch verbosity {
	case VerbosityUser:
		return zapcore.WarnLevel
	case VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
