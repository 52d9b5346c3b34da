// Package logging builds the zap loggers used by plugin-dylib binaries.
//
// The default level is warn. The process env `PLUGIN_DYLIB_LOG_LEVEL`
// (debug, info, warn, error) overrides it, and `PLUGIN_DYLIB_DEBUG_MODE`
// switches to a development logger that also records caller locations.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelEnv     = "PLUGIN_DYLIB_LOG_LEVEL"
	DebugModeEnv = "PLUGIN_DYLIB_DEBUG_MODE"
)

// ParseLevel maps a level name to a zap level. Unknown names yield warn.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// LevelFromEnv returns the level configured in LevelEnv, or warn.
func LevelFromEnv() zapcore.Level {
	return ParseLevel(os.Getenv(LevelEnv))
}

// New returns a console logger named name writing to out (stdout if nil)
// at the level taken from the environment.
func New(name string, out io.Writer) *zap.Logger {
	return NewWithLevel(name, out, LevelFromEnv())
}

// NewWithLevel is New with an explicit level.
func NewWithLevel(name string, out io.Writer, level zapcore.Level) *zap.Logger {
	if out == nil {
		out = os.Stdout
	}
	debugMode := os.Getenv(DebugModeEnv) != ""

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(out),
		zap.NewAtomicLevelAt(level),
	)

	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(os.Stderr))}
	if debugMode {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	return zap.New(core, opts...).Named(name)
}
