package logger

import (
	"aurelia-commerce/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(New),
)

type Params struct {
	fx.In
	Cfg *config.Config
}

// New builds the application logger: human-readable in development, JSON with
// ISO8601 timestamps in production. The logger is installed globally so the
// gorm adapter and fx hooks can reach it via zap.L().
func New(p Params) *zap.Logger {
	log := zap.Must(zap.NewDevelopment())

	if p.Cfg.AppEnv == "production" {
		c := zap.NewProductionConfig()
		c.EncoderConfig.TimeKey = "timestamp"
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		c.EncoderConfig.LevelKey = "severity"
		c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		c.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		c.OutputPaths = []string{"stdout"}
		c.ErrorOutputPaths = []string{"stderr"}

		var err error
		log, err = c.Build()
		if err != nil {
			panic(err)
		}
	}

	log = log.With(
		zap.String("env", p.Cfg.AppEnv),
		zap.String("service_name", p.Cfg.AppName),
	)

	zap.ReplaceGlobals(log)
	return log
}
