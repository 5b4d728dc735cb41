package events

import (
	"context"

	"github.com/railzwaylabs/interviewledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	if !cfg.Events.Enabled || len(cfg.Events.Brokers) == 0 {
		log.Named("events").Info("event publishing disabled")
		return Nop{}
	}

	pub := NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
