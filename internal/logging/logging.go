// Package logging builds the process-wide zap logger.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Development bool
	// File enables a rotating JSON log file next to stdout.
	File  string
	Level zapcore.Level
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// New returns a logger writing to stdout and, when opts.File is set, to a
// rotating file.
func New(opts Options) *zap.Logger {
	return newLogger(opts, os.Stdout)
}

func newLogger(opts Options, stdout io.Writer) *zap.Logger {
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig())

	var consoleEncoder zapcore.Encoder
	consoleLevel := opts.Level
	if opts.Development {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleLevel = zap.DebugLevel
	} else {
		consoleEncoder = jsonEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(stdout)), consoleLevel),
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), opts.Level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
