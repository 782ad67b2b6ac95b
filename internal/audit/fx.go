package audit

import (
	"github.com/smallbiznis/cuotas/internal/audit/repository"
	"github.com/smallbiznis/cuotas/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the append-only audit trail written by every mutation.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
