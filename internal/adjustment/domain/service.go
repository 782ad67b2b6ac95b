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
	Insert(ctx context.Context, db *gorm.DB, adj *Adjustment) error
	Update(ctx context.Context, db *gorm.DB, adj *Adjustment) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Adjustment, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Adjustment, error)
	// ActiveForPeriod returns active adjustments whose window overlaps p in
	// sequencing order (creation time, then id).
	ActiveForPeriod(ctx context.Context, db *gorm.DB, personID snowflake.ID, p period.Period) ([]Adjustment, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Adjustment, error)
	Update(ctx context.Context, req UpdateRequest) (*Adjustment, error)
	Deactivate(ctx context.Context, req TransitionRequest) (*Adjustment, error)
	Reactivate(ctx context.Context, req TransitionRequest) (*Adjustment, error)
	Delete(ctx context.Context, req TransitionRequest) error
	Get(ctx context.Context, id snowflake.ID) (*Adjustment, error)
	List(ctx context.Context, filter ListFilter) ([]Adjustment, error)
	ActiveForPeriod(ctx context.Context, personID snowflake.ID, p period.Period) ([]Adjustment, error)
}

type CreateRequest struct {
	PersonID  snowflake.ID    `json:"person_id" validate:"required"`
	Kind      Kind            `json:"kind" validate:"required,oneof=fixed_discount percent_discount fixed_surcharge percent_surcharge fixed_total_override"`
	Value     decimal.Decimal `json:"value" validate:"gte=0"`
	Scope     Scope           `json:"scope" validate:"omitempty,oneof=all_items base_only activities_only specific_items"`
	ItemCodes []string        `json:"item_codes,omitempty"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Actor     string          `json:"-"`
}

type UpdateRequest struct {
	ID        snowflake.ID     `json:"-"`
	Value     *decimal.Decimal `json:"value,omitempty" validate:"omitempty,gte=0"`
	Scope     *Scope           `json:"scope,omitempty"`
	ItemCodes []string         `json:"item_codes,omitempty"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Actor     string           `json:"-"`
}

type TransitionRequest struct {
	ID     snowflake.ID
	Reason string
	Actor  string
}
