package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindFixedDiscount      Kind = "fixed_discount"
	KindPercentDiscount    Kind = "percent_discount"
	KindFixedSurcharge     Kind = "fixed_surcharge"
	KindPercentSurcharge   Kind = "percent_surcharge"
	KindFixedTotalOverride Kind = "fixed_total_override"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFixedDiscount, KindPercentDiscount, KindFixedSurcharge, KindPercentSurcharge, KindFixedTotalOverride:
		return true
	}
	return false
}

func (k Kind) IsPercent() bool {
	return k == KindPercentDiscount || k == KindPercentSurcharge
}

// Scope records which items an adjustment was entered against. Sequencing
// always works on the running total.
type Scope string

const (
	ScopeAllItems       Scope = "all_items"
	ScopeBaseOnly       Scope = "base_only"
	ScopeActivitiesOnly Scope = "activities_only"
	ScopeSpecificItems  Scope = "specific_items"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeAllItems, ScopeBaseOnly, ScopeActivitiesOnly, ScopeSpecificItems:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Adjustment is a manual modifier entered by an administrator.
type Adjustment struct {
	ID        snowflake.ID                `gorm:"primaryKey" json:"id"`
	PersonID  snowflake.ID                `gorm:"not null;index" json:"person_id"`
	Kind      Kind                        `gorm:"type:text;not null" json:"kind"`
	Value     decimal.Decimal             `gorm:"type:numeric(12,2);not null" json:"value"`
	Scope     Scope                       `gorm:"type:text;not null" json:"scope"`
	ItemCodes datatypes.JSONSlice[string] `json:"item_codes,omitempty"`
	StartDate time.Time                   `gorm:"not null" json:"start_date"`
	EndDate   *time.Time                  `json:"end_date,omitempty"`
	Status    Status                      `gorm:"type:text;not null;index" json:"status"`
	Reason    *string                     `gorm:"type:text" json:"reason,omitempty"`
	CreatedBy string                      `gorm:"type:text;not null" json:"created_by"`
	CreatedAt time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Adjustment) TableName() string { return "adjustments" }

var hundred = decimal.NewFromInt(100)

// Validate checks the invariants of an adjustment.
func (a *Adjustment) Validate() error {
	if a.PersonID == 0 {
		return ErrInvalidPerson
	}
	if !a.Kind.Valid() {
		return ErrInvalidKind
	}
	if a.Value.IsNegative() {
		return ErrInvalidValue
	}
	if a.Kind.IsPercent() && a.Value.GreaterThan(hundred) {
		return ErrInvalidPercent
	}
	if !a.Scope.Valid() {
		return ErrInvalidScope
	}
	if a.Scope == ScopeSpecificItems && len(a.ItemCodes) == 0 {
		return ErrInvalidScope
	}
	if a.StartDate.IsZero() {
		return ErrInvalidWindow
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// StepRecord traces one adjustment applied to the running amount.
type StepRecord struct {
	AdjustmentID snowflake.ID    `json:"adjustment_id"`
	Kind         Kind            `json:"kind"`
	Value        decimal.Decimal `json:"value"`
	Pre          decimal.Decimal `json:"pre"`
	Delta        decimal.Decimal `json:"delta"`
	Post         decimal.Decimal `json:"post"`
}
