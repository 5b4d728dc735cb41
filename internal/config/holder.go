package config

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PricingHolder serves the current pricing guardrails. Values are swapped
// atomically when the backing config file changes.
type PricingHolder struct {
	current atomic.Pointer[PricingConfig]
}

func NewStaticPricingHolder(cfg PricingConfig) *PricingHolder {
	h := &PricingHolder{}
	h.Set(cfg)
	return h
}

type PricingHolderParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Log       *zap.Logger
}

func NewPricingHolder(p PricingHolderParams) *PricingHolder {
	h := NewStaticPricingHolder(p.Config.Pricing)
	if p.Config.ConfigFile == "" {
		return h
	}

	log := p.Log.Named("config.pricing")
	v := newViper()
	v.SetConfigFile(p.Config.ConfigFile)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := v.ReadInConfig(); err != nil {
				log.Warn("pricing guardrails watch disabled", zap.Error(err))
				return nil
			}
			v.OnConfigChange(func(e fsnotify.Event) {
				next, err := h.reload(v)
				if err != nil {
					log.Warn("ignoring pricing guardrails change", zap.Error(err), zap.String("file", e.Name))
					return
				}
				log.Info("pricing guardrails reloaded",
					zap.String("file", e.Name),
					zap.Float64("markup_ceiling", next.MarkupCeiling),
				)
			})
			v.WatchConfig()
			return nil
		},
	})
	return h
}

// reload swaps in the pricing section of v. Invalid values keep the
// current guardrails.
func (h *PricingHolder) reload(v *viper.Viper) (PricingConfig, error) {
	var next PricingConfig
	if err := v.UnmarshalKey("pricing", &next); err != nil {
		return PricingConfig{}, err
	}
	if next.MarkupCeiling <= 0 {
		return PricingConfig{}, ErrInvalidMarkupCeiling
	}
	h.Set(next)
	return next, nil
}

func (h *PricingHolder) Set(cfg PricingConfig) {
	h.current.Store(&cfg)
}

func (h *PricingHolder) Get() PricingConfig {
	if cfg := h.current.Load(); cfg != nil {
		return *cfg
	}
	return PricingConfig{MarkupCeiling: 100}
}

// MarkupCeiling returns the configured upper bound for markup percentages.
func (h *PricingHolder) MarkupCeiling() decimal.Decimal {
	return decimal.NewFromFloat(h.Get().MarkupCeiling)
}
