package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cuotas/internal/period"
	"gorm.io/gorm"
)

type ListFilter struct {
	PersonID snowflake.ID
	Status   Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ex *Exemption) error
	Update(ctx context.Context, db *gorm.DB, ex *Exemption) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Exemption, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Exemption, error)
	// ActiveForPeriod returns the approved exemption in force during p with
	// the highest percent, or nil.
	ActiveForPeriod(ctx context.Context, db *gorm.DB, personID snowflake.ID, p period.Period) (*Exemption, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Exemption, error)
	Update(ctx context.Context, req UpdateRequest) (*Exemption, error)
	Approve(ctx context.Context, req TransitionRequest) (*Exemption, error)
	Reject(ctx context.Context, req TransitionRequest) (*Exemption, error)
	Revoke(ctx context.Context, req TransitionRequest) (*Exemption, error)
	Get(ctx context.Context, id snowflake.ID) (*Exemption, error)
	List(ctx context.Context, filter ListFilter) ([]Exemption, error)
	ActiveForPeriod(ctx context.Context, personID snowflake.ID, p period.Period) (*Exemption, error)
}

type CreateRequest struct {
	PersonID  snowflake.ID    `json:"person_id" validate:"required"`
	Kind      Kind            `json:"kind" validate:"required,oneof=total partial"`
	Percent   decimal.Decimal `json:"percent" validate:"gte=0,lte=100"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Reason    string          `json:"reason" validate:"required"`
	Actor     string          `json:"-"`
}

type UpdateRequest struct {
	ID        snowflake.ID     `json:"-"`
	Kind      *Kind            `json:"kind,omitempty"`
	Percent   *decimal.Decimal `json:"percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
	Reason    *string          `json:"reason,omitempty"`
	Actor     string           `json:"-"`
}

type TransitionRequest struct {
	ID     snowflake.ID
	Reason string
	Actor  string
}
