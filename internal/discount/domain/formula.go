package domain

import (
	"github.com/shopspring/decimal"
)

type FormulaType string

const (
	FormulaFixedPercentage           FormulaType = "fixed_percentage"
	FormulaCategoryCatalogPercentage FormulaType = "category_catalog_percentage"
	FormulaTieredByActivityCount     FormulaType = "tiered_by_activity_count"
	FormulaCustom                    FormulaType = "custom_function"
)

// Formula is the closed set of ways a rule computes its percent.
type Formula interface {
	FormulaType() FormulaType
	isFormula()
}

type FixedPercentage struct {
	Percent decimal.Decimal `json:"percent"`
}

// CategoryCatalogPercentage uses the discount percent stored on the member's
// category.
type CategoryCatalogPercentage struct{}

// Tier bounds are inclusive, a nil Max is unbounded.
type Tier struct {
	Min     int             `json:"min"`
	Max     *int            `json:"max,omitempty"`
	Percent decimal.Decimal `json:"percent"`
}

func (t Tier) Contains(n int) bool {
	return n >= t.Min && (t.Max == nil || n <= *t.Max)
}

// TieredByActivityCount picks the first tier containing the member's active
// activity count. No matching tier resolves to 0%.
type TieredByActivityCount struct {
	Tiers []Tier `json:"tiers"`
}

// CustomFormula dispatches to a function registered by name.
type CustomFormula struct {
	Function string `json:"function"`
	// PercentPerYear and CapPercent parameterise FunctionTenureYears.
	PercentPerYear *decimal.Decimal `json:"percent_per_year,omitempty"`
	CapPercent     *decimal.Decimal `json:"cap_percent,omitempty"`
}

type UnknownFormula struct {
	Type string `json:"-"`
}

func (FixedPercentage) FormulaType() FormulaType           { return FormulaFixedPercentage }
func (CategoryCatalogPercentage) FormulaType() FormulaType { return FormulaCategoryCatalogPercentage }
func (TieredByActivityCount) FormulaType() FormulaType     { return FormulaTieredByActivityCount }
func (CustomFormula) FormulaType() FormulaType             { return FormulaCustom }
func (f UnknownFormula) FormulaType() FormulaType          { return FormulaType(f.Type) }

func (FixedPercentage) isFormula()           {}
func (CategoryCatalogPercentage) isFormula() {}
func (TieredByActivityCount) isFormula()     {}
func (CustomFormula) isFormula()             {}
func (UnknownFormula) isFormula()            {}

// Registered custom functions.
const (
	FunctionMaxFamilyLinkDiscount = "max_family_link_discount"
	FunctionTenureYears           = "tenure_years"
)

var (
	DefaultTenurePercentPerYear = decimal.NewFromInt(1)
	DefaultTenureCapPercent     = decimal.NewFromInt(15)
)

var knownFunctions = map[string]bool{
	FunctionMaxFamilyLinkDiscount: true,
	FunctionTenureYears:           true,
}

func IsKnownFunction(name string) bool { return knownFunctions[name] }

// ValidateFormula checks the parameters of a formula before it is saved.
func ValidateFormula(f Formula) error {
	switch v := f.(type) {
	case FixedPercentage:
		if !PercentInRange(v.Percent) {
			return ErrInvalidPercent
		}
	case CategoryCatalogPercentage:
	case TieredByActivityCount:
		if len(v.Tiers) == 0 {
			return ErrInvalidFormula
		}
		for _, t := range v.Tiers {
			if t.Min < 0 || (t.Max != nil && *t.Max < t.Min) {
				return ErrInvalidFormula
			}
			if !PercentInRange(t.Percent) {
				return ErrInvalidPercent
			}
		}
	case CustomFormula:
		if !IsKnownFunction(v.Function) {
			return ErrUnknownCustomName
		}
		if v.PercentPerYear != nil && !PercentInRange(*v.PercentPerYear) {
			return ErrInvalidPercent
		}
		if v.CapPercent != nil && !PercentInRange(*v.CapPercent) {
			return ErrInvalidPercent
		}
	default:
		return ErrUnknownFormulaType
	}
	return nil
}
