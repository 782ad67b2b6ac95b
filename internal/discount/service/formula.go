package service

import (
	"github.com/shopspring/decimal"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
)

// FormulaResolver computes the percent an applicable rule grants.
type FormulaResolver struct{}

func NewFormulaResolver() *FormulaResolver {
	return &FormulaResolver{}
}

// Resolve returns 0 when the formula grants nothing. Unknown formulas and
// unregistered custom functions are configuration errors.
func (r *FormulaResolver) Resolve(rule discountdomain.CompiledRule, facts discountdomain.Facts) (decimal.Decimal, error) {
	switch f := rule.Formula.(type) {
	case discountdomain.FixedPercentage:
		return f.Percent, nil
	case discountdomain.CategoryCatalogPercentage:
		return facts.CategoryDiscountPercent, nil
	case discountdomain.TieredByActivityCount:
		for _, tier := range f.Tiers {
			if tier.Contains(facts.ActiveActivities) {
				return tier.Percent, nil
			}
		}
		return decimal.Zero, nil
	case discountdomain.CustomFormula:
		return r.resolveCustom(f, facts)
	default:
		var variant string
		if rule.Formula != nil {
			variant = string(rule.Formula.FormulaType())
		}
		return decimal.Zero, ierr.WithError(discountdomain.ErrUnknownFormulaType).
			WithMessagef("rule %s formula %q", rule.Rule.Code, variant).
			Error()
	}
}

func (r *FormulaResolver) resolveCustom(f discountdomain.CustomFormula, facts discountdomain.Facts) (decimal.Decimal, error) {
	switch f.Function {
	case discountdomain.FunctionMaxFamilyLinkDiscount:
		return facts.MaxFamilyLinkDiscount, nil
	case discountdomain.FunctionTenureYears:
		if facts.TenureMonths == nil {
			return decimal.Zero, nil
		}
		perYear := discountdomain.DefaultTenurePercentPerYear
		if f.PercentPerYear != nil {
			perYear = *f.PercentPerYear
		}
		limit := discountdomain.DefaultTenureCapPercent
		if f.CapPercent != nil {
			limit = *f.CapPercent
		}
		years := decimal.NewFromInt(int64(*facts.TenureMonths / 12))
		return decimal.Min(years.Mul(perYear), limit), nil
	default:
		return decimal.Zero, ierr.WithError(discountdomain.ErrUnknownCustomName).
			WithMessagef("custom function %q", f.Function).
			Error()
	}
}
