package pricechange

import (
	"github.com/railzwaylabs/interviewledger/internal/pricechange/repository"
	"github.com/railzwaylabs/interviewledger/internal/pricechange/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricechange.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
