package service

import (
	"github.com/shopspring/decimal"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
)

var hundred = decimal.NewFromInt(100)

// Apply subtracts the exemption percent from current. A nil exemption leaves
// the amount unchanged and returns no record.
func Apply(ex *exemptiondomain.Exemption, current decimal.Decimal, places int32) (decimal.Decimal, *exemptiondomain.AppliedExemption) {
	if ex == nil {
		return current, nil
	}

	reduction := current.Mul(ex.Percent).Div(hundred).Round(places)
	post := current.Sub(reduction)
	if post.IsNegative() {
		post = decimal.Zero
	}
	return post, &exemptiondomain.AppliedExemption{
		ExemptionID: ex.ID,
		Kind:        ex.Kind,
		Percent:     ex.Percent,
		Pre:         current,
		Delta:       post.Sub(current),
		Post:        post,
	}
}
