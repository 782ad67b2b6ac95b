package member

import (
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/member/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("member.repository",
	fx.Provide(repository.NewRepository),
	fx.Provide(
		func(r *repository.Repository) memberdomain.Directory { return r },
		func(r *repository.Repository) memberdomain.CategoryCatalog { return r },
		func(r *repository.Repository) memberdomain.FamilyLinkRepository { return r },
		func(r *repository.Repository) memberdomain.ActivityParticipationRepository { return r },
		func(r *repository.Repository) memberdomain.TenureLookup { return r },
	),
)
