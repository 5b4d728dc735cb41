package invoice

import (
	"github.com/railzwaylabs/interviewledger/internal/invoice/archive"
	"github.com/railzwaylabs/interviewledger/internal/invoice/render"
	"github.com/railzwaylabs/interviewledger/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(archive.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
)
