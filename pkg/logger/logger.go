// Package logger provides the opinionated logging setup for docbot.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a console logger. Warnings and errors go to stderr so
// Cloud Run picks them up as error entries; everything below stays on stdout.
// Debug mode lowers the level so per-request prompt and answer previews
// become visible.
func NewLogger(debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	minLevel := zap.InfoLevel
	if debug {
		minLevel = zap.DebugLevel
	}

	stdoutLevels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l < zapcore.WarnLevel
	})
	stderrLevels := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.WarnLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), stdoutLevels),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), stderrLevels),
	)

	return zap.New(core, zap.AddCaller())
}
