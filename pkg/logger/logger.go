package logger

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envDev   = "dev"
	envLocal = "local"
)

var global = zap.NewNop()

// SetupLogger builds the application logger for the given environment and
// installs it as the package-level logger. Local and dev get a human
// readable console encoder with debug level, everything else structured
// JSON at info level.
func SetupLogger(env string) *zap.SugaredLogger {
	var cfg zap.Config

	switch env {
	case envLocal, envDev:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		log.Fatalf("cannot build logger: %s", err)
	}

	// The package-level helpers add one frame.
	global = l.WithOptions(zap.AddCallerSkip(1))
	zap.ReplaceGlobals(l)

	return l.Sugar()
}

// Logger returns the underlying zap logger for middlewares that want the
// structured API directly.
func Logger() *zap.Logger {
	return global
}

func Debug(msg string, fields ...zap.Field) {
	global.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	global.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	global.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	global.Error(msg, fields...)
}
