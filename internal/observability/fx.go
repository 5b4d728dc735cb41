package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Gatherer { return reg }),
	fx.Provide(NewMetrics),
	fx.Provide(NewTracerProvider),
)
