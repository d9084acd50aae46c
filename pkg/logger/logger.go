package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar = zap.NewNop().Sugar()

// Init builds the process-wide logger. Until it is called every log call is a no-op.
func Init(environment string) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return
	}

	sugar = l.Sugar()
}

func Debug(msg string, args ...any) {
	sugar.Debugw(msg, args...)
}

func Info(msg string, args ...any) {
	sugar.Infow(msg, args...)
}

func Warn(msg string, args ...any) {
	sugar.Warnw(msg, args...)
}

func Error(msg string, args ...any) {
	sugar.Errorw(msg, args...)
}

// Fatal logs and exits the process.
func Fatal(msg string, args ...any) {
	sugar.Errorw(msg, args...)
	_ = sugar.Sync()
	os.Exit(1)
}

func Sync() {
	_ = sugar.Sync()
}
