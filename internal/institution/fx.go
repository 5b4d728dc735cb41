package institution

import (
	"github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("institution.directory",
	fx.Provide(repository.Provide),
)
