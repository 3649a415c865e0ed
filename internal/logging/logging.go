package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Dev mode uses the human-readable console
// encoder; anything else emits production JSON with ISO8601 timestamps.
func New(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		levelFromEnv(),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func levelFromEnv() zapcore.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
