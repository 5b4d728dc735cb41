package audit

import (
	"github.com/railzwaylabs/interviewledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewService),
	fx.Provide(service.NewExportService),
)
