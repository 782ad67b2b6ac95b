package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	discountservice "github.com/smallbiznis/cuotas/internal/discount/service"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func fixedRule(t *testing.T, id int64, code string, mode discountdomain.ApplicationMode, percent string) discountdomain.Rule {
	t.Helper()
	conds, err := discountdomain.EncodeConditions(nil)
	require.NoError(t, err)
	formula, err := discountdomain.EncodeFormula(discountdomain.FixedPercentage{Percent: dec(percent)})
	require.NoError(t, err)
	return discountdomain.Rule{
		ID:              snowflake.ID(id),
		Code:            code,
		Active:          true,
		Priority:        int(id),
		Conditions:      conds,
		Formula:         formula,
		ApplicationMode: mode,
		AppliesToBase:   true,
	}
}

func activeConfig() discountdomain.GlobalConfig {
	return discountdomain.GlobalConfig{
		ID:               discountdomain.GlobalConfigID,
		Active:           true,
		GlobalCapPercent: dec("100"),
	}
}

func newPipeline() *Pipeline {
	return NewPipeline(discountservice.NewEngine(zap.NewNop()))
}

func TestPipeline_EndToEnd(t *testing.T) {
	in := pricingdomain.Input{
		BaseAmount: dec("5000"),
		RuleSet: discountdomain.RuleSet{
			Rules:  []discountdomain.Rule{fixedRule(t, 1, "loyalty", discountdomain.ModeCumulative, "40")},
			Config: activeConfig(),
		},
		Adjustments: []adjustmentdomain.Adjustment{
			{ID: 10, Kind: adjustmentdomain.KindPercentDiscount, Value: dec("10"), Scope: adjustmentdomain.ScopeAllItems},
		},
		Exemption: &exemptiondomain.Exemption{
			ID:      20,
			Kind:    exemptiondomain.KindPartial,
			Percent: dec("50"),
			Status:  exemptiondomain.StatusApproved,
		},
		RoundingPlaces: 2,
	}

	b := newPipeline().Price(in)

	assertDecimal(t, "5000", b.Gross)
	assertDecimal(t, "3000", b.AfterDiscounts)
	assertDecimal(t, "2700", b.AfterAdjustments)
	assertDecimal(t, "1350", b.Total)
	assertDecimal(t, "1350", b.LinesTotal())

	kinds := make([]pricingdomain.LineKind, 0, len(b.Lines))
	for _, line := range b.Lines {
		kinds = append(kinds, line.Kind)
	}
	assert.Equal(t, []pricingdomain.LineKind{
		pricingdomain.LineBase,
		pricingdomain.LineDiscount,
		pricingdomain.LineAdjustment,
		pricingdomain.LineExemption,
	}, kinds)

	assertDecimal(t, "-2000", b.Lines[1].Amount)
	assert.Equal(t, "cumulative", b.Lines[1].Provenance["mode"])
	assert.Equal(t, []string{"1"}, b.Lines[1].Provenance["rule_ids"])
	assertDecimal(t, "-300", b.Lines[2].Amount)
	assert.False(t, b.Lines[2].Automatic)
	assertDecimal(t, "-1350", b.Lines[3].Amount)

	require.Len(t, b.Applications, 1)
	assert.True(t, b.Applications[0].Applied)
	require.Len(t, b.Steps, 1)
	require.NotNil(t, b.Exemption)
	assertDecimal(t, "2700", b.Exemption.Pre)
}

func TestPipeline_InactiveConfigSkipsDiscounts(t *testing.T) {
	cfg := activeConfig()
	cfg.Active = false

	b := newPipeline().Price(pricingdomain.Input{
		BaseAmount: dec("1000"),
		RuleSet: discountdomain.RuleSet{
			Rules:  []discountdomain.Rule{fixedRule(t, 1, "loyalty", discountdomain.ModeCumulative, "40")},
			Config: cfg,
		},
		RoundingPlaces: 2,
	})

	assertDecimal(t, "1000", b.Total)
	assert.Len(t, b.Lines, 1)
	assert.Empty(t, b.Applications)
}

func TestPipeline_DiscountStageFloor(t *testing.T) {
	b := newPipeline().Price(pricingdomain.Input{
		BaseAmount: dec("1000"),
		RuleSet: discountdomain.RuleSet{
			Rules: []discountdomain.Rule{
				fixedRule(t, 1, "volunteer", discountdomain.ModeCumulative, "80"),
				fixedRule(t, 2, "founder", discountdomain.ModeExclusive, "60"),
			},
			Config: activeConfig(),
		},
		Adjustments: []adjustmentdomain.Adjustment{
			{ID: 10, Kind: adjustmentdomain.KindFixedSurcharge, Value: dec("150"), Scope: adjustmentdomain.ScopeAllItems},
		},
		RoundingPlaces: 2,
	})

	assertDecimal(t, "0", b.AfterDiscounts)
	assertDecimal(t, "150", b.Total)
	assertDecimal(t, "150", b.LinesTotal())

	var floor *pricingdomain.Line
	for i := range b.Lines {
		if b.Lines[i].Kind == pricingdomain.LineDiscountFloor {
			floor = &b.Lines[i]
		}
	}
	require.NotNil(t, floor)
	assertDecimal(t, "400", floor.Amount)
}

func TestPipeline_ActivitiesScopedDiscount(t *testing.T) {
	rule := fixedRule(t, 1, "multi_activity", discountdomain.ModeCapped, "20")
	rule.AppliesToBase = false
	rule.AppliesToActivities = true

	b := newPipeline().Price(pricingdomain.Input{
		BaseAmount:       dec("3000"),
		ActivitiesAmount: dec("1500"),
		RuleSet: discountdomain.RuleSet{
			Rules:  []discountdomain.Rule{rule},
			Config: activeConfig(),
		},
		RoundingPlaces: 2,
	})

	require.Len(t, b.Lines, 3)
	assert.Equal(t, pricingdomain.LineActivities, b.Lines[1].Kind)
	assertDecimal(t, "-300", b.Lines[2].Amount)
	assertDecimal(t, "4200", b.Total)
}

func TestPipeline_SkippedRulesAreReported(t *testing.T) {
	broken := fixedRule(t, 2, "broken", discountdomain.ModeCumulative, "10")
	broken.Formula = datatypes.JSON(`{"type":"lottery","params":{}}`)

	b := newPipeline().Price(pricingdomain.Input{
		BaseAmount: dec("1000"),
		RuleSet: discountdomain.RuleSet{
			Rules: []discountdomain.Rule{
				fixedRule(t, 1, "loyalty", discountdomain.ModeCumulative, "10"),
				broken,
			},
			Config: activeConfig(),
		},
		RoundingPlaces: 2,
	})

	assertDecimal(t, "900", b.Total)
	require.Len(t, b.Skipped, 1)
	assert.Equal(t, "broken", b.Skipped[0].RuleCode)
}

func TestPipeline_ZeroDeltaAdjustmentKeepsStep(t *testing.T) {
	b := newPipeline().Price(pricingdomain.Input{
		BaseAmount: dec("800"),
		RuleSet:    discountdomain.RuleSet{Config: activeConfig()},
		Adjustments: []adjustmentdomain.Adjustment{
			{ID: 10, Kind: adjustmentdomain.KindFixedTotalOverride, Value: dec("800"), Scope: adjustmentdomain.ScopeAllItems},
		},
		RoundingPlaces: 2,
	})

	assert.Len(t, b.Lines, 1)
	assert.Len(t, b.Steps, 1)
	assertDecimal(t, "800", b.Total)
}
