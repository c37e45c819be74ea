package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tradepulse/pkg/config"
)

var Module = fx.Module("logger", fx.Provide(New))

// New builds the process logger and installs it as the zap global.
// Development keeps the console encoder, production emits JSON to stdout.
func New(cfg *config.Config) *zap.Logger {
	log := zap.Must(zap.NewDevelopment())

	if cfg.AppEnv == "production" {
		zc := zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		zc.OutputPaths = []string{"stdout"}
		zc.ErrorOutputPaths = []string{"stderr"}
		log = zap.Must(zc.Build())
	}

	log = log.With(
		zap.String("app", cfg.AppName),
		zap.String("version", cfg.AppVersion),
		zap.String("env", cfg.AppEnv),
	)

	zap.ReplaceGlobals(log)
	return log
}
