package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"github.com/smallbiznis/cuotas/internal/period"
)

var (
	ErrPersonNotFound   = ierr.NewError("person_not_found").Mark(ierr.ErrNotFound)
	ErrCategoryNotFound = ierr.NewError("category_not_found").Mark(ierr.ErrNotFound)
)

type PersonFilter struct {
	PersonIDs   []snowflake.ID
	CategoryIDs []snowflake.ID
}

// Directory lists the members dues are generated for.
type Directory interface {
	FindPerson(ctx context.Context, id snowflake.ID) (*Person, error)
	ListActivePersons(ctx context.Context, filter PersonFilter) ([]Person, error)
}

type CategoryCatalog interface {
	GetCategory(ctx context.Context, categoryID snowflake.ID) (*Category, error)
	GetBasePrice(ctx context.Context, categoryID snowflake.ID) (decimal.Decimal, error)
	GetDiscountPercent(ctx context.Context, categoryID snowflake.ID) (decimal.Decimal, error)
}

type FamilyLinkRepository interface {
	// CountLinks counts links whose related member is active.
	CountLinks(ctx context.Context, personID snowflake.ID) (int, error)
	// CountActiveLinks additionally requires the link itself to be active.
	CountActiveLinks(ctx context.Context, personID snowflake.ID) (int, error)
	MaxLinkDiscount(ctx context.Context, personID snowflake.ID) (decimal.Decimal, error)
}

type ActivityParticipationRepository interface {
	CountActive(ctx context.Context, personID snowflake.ID) (int, error)
	SumCost(ctx context.Context, personID snowflake.ID, p period.Period) (decimal.Decimal, error)
}

type TenureLookup interface {
	MembershipStartDate(ctx context.Context, personID snowflake.ID) (*time.Time, error)
}
