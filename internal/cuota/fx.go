package cuota

import (
	"github.com/smallbiznis/cuotas/internal/cuota/repository"
	"github.com/smallbiznis/cuotas/internal/cuota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cuota.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
