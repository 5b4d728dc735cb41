package observability

import (
	"context"

	"github.com/railzwaylabs/interviewledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Observability.LogLevel)); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	log, err := zcfg.Build(zap.Fields(
		zap.String("service", cfg.AppName),
		zap.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}
