// Package logging builds the service logger: ectologger's structured API on
// top of a zap core, so every log line carries the run's job and trace
// fields as structured JSON.
package logging

import (
	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger returns an ectologger backed by zap. Pretty mode uses the
// console encoder for local development.
func NewZapLogger(level string, pretty bool) (ectologger.Logger, func() error) {
	zapLevel := parseLevel(level)

	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		// Config above is static; Build only fails on bad output paths.
		zl = zap.NewNop()
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		fields := make([]zap.Field, 0, len(msg.Fields)+1)
		for k, v := range msg.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if msg.Err != nil {
			fields = append(fields, zap.Error(msg.Err))
		}

		switch msg.Level {
		case "debug":
			zl.Debug(msg.Message, fields...)
		case "warn":
			zl.Warn(msg.Message, fields...)
		case "error", "fatal":
			zl.Error(msg.Message, fields...)
		default:
			zl.Info(msg.Message, fields...)
		}
	})

	return logger, zl.Sync
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
