package cli

import (
	"github.com/edaniels/golog"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

// newLogger builds the console logger and, with --log-file, tees every entry at the same
// level into a rotated JSON file.
func newLogger(c *cli.Context) golog.Logger {
	level := zapcore.InfoLevel
	logger := golog.NewDevelopmentLogger("navcore")
	if c.Bool(flagDebug) {
		level = zapcore.DebugLevel
		logger = golog.NewDebugLogger("navcore")
	}
	path := c.Path(flagLogFile)
	if path == "" {
		return logger
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, level)
	return logger.Desugar().WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})).Sugar()
}
