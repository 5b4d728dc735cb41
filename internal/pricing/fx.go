package pricing

import (
	"github.com/railzwaylabs/interviewledger/internal/pricing/cache"
	"github.com/railzwaylabs/interviewledger/internal/pricing/repository"
	"github.com/railzwaylabs/interviewledger/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewResolver),
)
