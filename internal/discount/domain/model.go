package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ApplicationMode decides how rules that apply at the same time combine.
type ApplicationMode string

const (
	ModeCumulative ApplicationMode = "cumulative"
	ModeExclusive  ApplicationMode = "exclusive"
	ModeCapped     ApplicationMode = "capped"
	ModeCustom     ApplicationMode = "custom"
)

// Resolution order of the mode groups in a breakdown.
var ModeOrder = []ApplicationMode{ModeCumulative, ModeExclusive, ModeCapped, ModeCustom}

func (m ApplicationMode) Valid() bool {
	switch m {
	case ModeCumulative, ModeExclusive, ModeCapped, ModeCustom:
		return true
	}
	return false
}

// CustomResolution names the per rule resolution used by ModeCustom rules.
type CustomResolution string

const (
	// ResolutionIndependent applies the rule alone, clamped to the global cap.
	ResolutionIndependent CustomResolution = "independent"
	// ResolutionWholePercent truncates to a whole percent before clamping.
	ResolutionWholePercent CustomResolution = "whole_percent"
)

func (r CustomResolution) Valid() bool {
	switch r {
	case "", ResolutionIndependent, ResolutionWholePercent:
		return true
	}
	return false
}

// Rule is a configured discount definition. Conditions and Formula hold the
// tagged variant envelopes; see DecodeConditions and DecodeFormula.
type Rule struct {
	ID                  snowflake.ID        `gorm:"primaryKey" json:"id"`
	Code                string              `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name                string              `gorm:"type:text;not null" json:"name"`
	Description         *string             `gorm:"type:text" json:"description"`
	Active              bool                `gorm:"not null;index" json:"active"`
	Priority            int                 `gorm:"not null" json:"priority"`
	Conditions          datatypes.JSON      `gorm:"not null" json:"conditions"`
	Formula             datatypes.JSON      `gorm:"not null" json:"formula"`
	ApplicationMode     ApplicationMode     `gorm:"type:text;not null" json:"application_mode"`
	CustomResolution    CustomResolution    `gorm:"type:text;not null;default:''" json:"custom_resolution"`
	MaxDiscountPercent  decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"max_discount_percent"`
	AppliesToBase       bool                `gorm:"not null" json:"applies_to_base"`
	AppliesToActivities bool                `gorm:"not null;default:false" json:"applies_to_activities"`
	CreatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Rule) TableName() string { return "discount_rules" }

// GlobalConfig is the single row discount engine configuration.
type GlobalConfig struct {
	ID                int64                       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Active            bool                        `gorm:"not null" json:"active"`
	GlobalCapPercent  decimal.Decimal             `gorm:"type:numeric(5,2);not null" json:"global_cap_percent"`
	RulePriorityOrder datatypes.JSONSlice[string] `gorm:"" json:"rule_priority_order"`
	UpdatedBy         string                      `gorm:"type:text;not null;default:'system'" json:"updated_by"`
	UpdatedAt         time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GlobalConfig) TableName() string { return "discount_config" }

// GlobalConfigID is the primary key of the only config row.
const GlobalConfigID int64 = 1

func (c *GlobalConfig) Validate() error {
	if !PercentInRange(c.GlobalCapPercent) {
		return ErrInvalidGlobalCap
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// PercentInRange reports whether p is within [0,100].
func PercentInRange(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
