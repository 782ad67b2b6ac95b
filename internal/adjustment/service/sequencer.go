package service

import (
	"github.com/shopspring/decimal"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
)

var hundred = decimal.NewFromInt(100)

// Sequence folds the adjustments over current in the given order. Each step
// sees the output of the previous one and the running amount never drops
// below zero. Deltas are rounded to places.
func Sequence(adjustments []adjustmentdomain.Adjustment, current decimal.Decimal, places int32) (decimal.Decimal, []adjustmentdomain.StepRecord) {
	steps := make([]adjustmentdomain.StepRecord, 0, len(adjustments))
	for _, adj := range adjustments {
		pre := current

		var delta decimal.Decimal
		switch adj.Kind {
		case adjustmentdomain.KindFixedDiscount:
			delta = decimal.Min(adj.Value, pre).Neg()
		case adjustmentdomain.KindPercentDiscount:
			delta = pre.Mul(adj.Value).Div(hundred).Round(places).Neg()
		case adjustmentdomain.KindFixedSurcharge:
			delta = adj.Value
		case adjustmentdomain.KindPercentSurcharge:
			delta = pre.Mul(adj.Value).Div(hundred).Round(places)
		case adjustmentdomain.KindFixedTotalOverride:
			delta = adj.Value.Sub(pre)
		default:
			delta = decimal.Zero
		}

		post := pre.Add(delta)
		if post.IsNegative() {
			post = decimal.Zero
		}
		steps = append(steps, adjustmentdomain.StepRecord{
			AdjustmentID: adj.ID,
			Kind:         adj.Kind,
			Value:        adj.Value,
			Pre:          pre,
			Delta:        post.Sub(pre),
			Post:         post,
		})
		current = post
	}
	return current, steps
}
