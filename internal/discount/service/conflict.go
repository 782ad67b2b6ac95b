package service

import (
	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
)

var hundred = decimal.NewFromInt(100)

// ResolveConflicts combines applicable discounts into discount line items.
// Input order is the effective rule order; groups are emitted in
// discountdomain.ModeOrder. Amounts are negative and rounded to places.
func ResolveConflicts(applicable []discountdomain.ApplicableDiscount, globalCap decimal.Decimal, places int32) ([]discountdomain.ResolvedDiscount, []discountdomain.RuleApplication) {
	groups := lo.GroupBy(applicable, func(a discountdomain.ApplicableDiscount) discountdomain.ApplicationMode {
		return a.Rule.ApplicationMode
	})

	var (
		discounts    []discountdomain.ResolvedDiscount
		applications []discountdomain.RuleApplication
	)
	for _, mode := range discountdomain.ModeOrder {
		group := groups[mode]
		if len(group) == 0 {
			continue
		}

		var (
			d []discountdomain.ResolvedDiscount
			a []discountdomain.RuleApplication
		)
		switch mode {
		case discountdomain.ModeCumulative:
			d, a = resolveCumulative(group, globalCap, places)
		case discountdomain.ModeExclusive:
			d, a = resolveExclusive(group, globalCap, places)
		case discountdomain.ModeCapped:
			d, a = resolveEach(group, places, func(ad discountdomain.ApplicableDiscount) decimal.Decimal {
				limit := globalCap
				if ad.Rule.MaxDiscountPercent.Valid {
					limit = decimal.Min(ad.Rule.MaxDiscountPercent.Decimal, globalCap)
				}
				return decimal.Min(ad.Percent, limit)
			})
		case discountdomain.ModeCustom:
			d, a = resolveEach(group, places, func(ad discountdomain.ApplicableDiscount) decimal.Decimal {
				pct := ad.Percent
				if ad.Rule.CustomResolution == discountdomain.ResolutionWholePercent {
					pct = pct.Truncate(0)
				}
				return decimal.Min(pct, globalCap)
			})
		}
		discounts = append(discounts, d...)
		applications = append(applications, a...)
	}
	return discounts, applications
}

func resolveCumulative(group []discountdomain.ApplicableDiscount, globalCap decimal.Decimal, places int32) ([]discountdomain.ResolvedDiscount, []discountdomain.RuleApplication) {
	sum := decimal.Zero
	weighted := decimal.Zero
	for _, ad := range group {
		sum = sum.Add(ad.Percent)
		weighted = weighted.Add(ad.Base.Mul(ad.Percent))
	}
	effective := decimal.Min(sum, globalCap)
	capped := sum.GreaterThan(effective)

	applications := make([]discountdomain.RuleApplication, 0, len(group))
	for _, ad := range group {
		applied := ad.Percent.Mul(effective).Div(sum)
		app := newApplication(ad, applied, ad.Base.Mul(applied).Div(hundred).Round(places).Neg())
		if capped {
			app.Note = discountdomain.NoteCapped
		}
		applications = append(applications, app)
	}

	amount := weighted.Mul(effective).Div(sum.Mul(hundred)).Round(places)
	if amount.IsZero() {
		return nil, applications
	}
	return []discountdomain.ResolvedDiscount{{
		Mode:      discountdomain.ModeCumulative,
		Percent:   effective,
		Base:      weighted.Div(sum).Round(places),
		Amount:    amount.Neg(),
		RuleIDs:   lo.Map(group, func(ad discountdomain.ApplicableDiscount, _ int) snowflake.ID { return ad.Rule.ID }),
		RuleCodes: lo.Map(group, func(ad discountdomain.ApplicableDiscount, _ int) string { return ad.Rule.Code }),
	}}, applications
}

// resolveExclusive keeps the highest percent. On a tie the earlier rule in
// effective order wins.
func resolveExclusive(group []discountdomain.ApplicableDiscount, globalCap decimal.Decimal, places int32) ([]discountdomain.ResolvedDiscount, []discountdomain.RuleApplication) {
	winner := 0
	for i := 1; i < len(group); i++ {
		if group[i].Percent.GreaterThan(group[winner].Percent) {
			winner = i
		}
	}

	var discounts []discountdomain.ResolvedDiscount
	applications := make([]discountdomain.RuleApplication, 0, len(group))
	for i, ad := range group {
		if i != winner {
			app := newApplication(ad, decimal.Zero, decimal.Zero)
			app.Applied = false
			app.Note = discountdomain.NoteSuperseded
			applications = append(applications, app)
			continue
		}
		d, app := single(ad, decimal.Min(ad.Percent, globalCap), places)
		applications = append(applications, app)
		if d != nil {
			discounts = append(discounts, *d)
		}
	}
	return discounts, applications
}

func resolveEach(group []discountdomain.ApplicableDiscount, places int32, effective func(discountdomain.ApplicableDiscount) decimal.Decimal) ([]discountdomain.ResolvedDiscount, []discountdomain.RuleApplication) {
	var discounts []discountdomain.ResolvedDiscount
	applications := make([]discountdomain.RuleApplication, 0, len(group))
	for _, ad := range group {
		d, app := single(ad, effective(ad), places)
		applications = append(applications, app)
		if d != nil {
			discounts = append(discounts, *d)
		}
	}
	return discounts, applications
}

func single(ad discountdomain.ApplicableDiscount, pct decimal.Decimal, places int32) (*discountdomain.ResolvedDiscount, discountdomain.RuleApplication) {
	amount := ad.Base.Mul(pct).Div(hundred).Round(places)
	app := newApplication(ad, pct, amount.Neg())
	if pct.LessThan(ad.Percent) {
		app.Note = discountdomain.NoteCapped
	}
	if amount.IsZero() {
		return nil, app
	}
	return &discountdomain.ResolvedDiscount{
		Mode:      ad.Rule.ApplicationMode,
		Percent:   pct,
		Base:      ad.Base,
		Amount:    amount.Neg(),
		RuleIDs:   []snowflake.ID{ad.Rule.ID},
		RuleCodes: []string{ad.Rule.Code},
	}, app
}

func newApplication(ad discountdomain.ApplicableDiscount, applied, amount decimal.Decimal) discountdomain.RuleApplication {
	return discountdomain.RuleApplication{
		RuleID:           ad.Rule.ID,
		RuleCode:         ad.Rule.Code,
		Mode:             ad.Rule.ApplicationMode,
		RequestedPercent: ad.Percent,
		AppliedPercent:   applied,
		Base:             ad.Base,
		Amount:           amount,
		Applied:          true,
	}
}
