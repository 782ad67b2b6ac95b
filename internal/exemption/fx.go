package exemption

import (
	"github.com/smallbiznis/cuotas/internal/exemption/repository"
	"github.com/smallbiznis/cuotas/internal/exemption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("exemption.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
