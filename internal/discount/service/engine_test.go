package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
)

type ruleOpt func(*discountdomain.Rule)

func newRule(t *testing.T, id int64, code string, mode discountdomain.ApplicationMode, formula discountdomain.Formula, conds []discountdomain.Condition, opts ...ruleOpt) discountdomain.Rule {
	t.Helper()
	rawConds, err := discountdomain.EncodeConditions(conds)
	require.NoError(t, err)
	rawFormula, err := discountdomain.EncodeFormula(formula)
	require.NoError(t, err)

	rule := discountdomain.Rule{
		ID:              snowflake.ID(id),
		Code:            code,
		Active:          true,
		Priority:        int(id),
		Conditions:      rawConds,
		Formula:         rawFormula,
		ApplicationMode: mode,
		AppliesToBase:   true,
	}
	for _, opt := range opts {
		opt(&rule)
	}
	return rule
}

func fixed(p string) discountdomain.Formula {
	return discountdomain.FixedPercentage{Percent: dec(p)}
}

func activeConfig(capPercent string, order ...string) discountdomain.GlobalConfig {
	return discountdomain.GlobalConfig{Active: true, GlobalCapPercent: dec(capPercent), RulePriorityOrder: order}
}

func intPtr(v int) *int { return &v }

func TestEngine_AppliesMatchingRules(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	result := engine.Run(EngineInput{
		Rules: []discountdomain.Rule{
			newRule(t, 1, "student", discountdomain.ModeCumulative, fixed("40"), []discountdomain.Condition{
				discountdomain.CategoryMembership{Categories: []string{"STUDENT"}},
			}),
			newRule(t, 2, "senior", discountdomain.ModeCumulative, fixed("30"), []discountdomain.Condition{
				discountdomain.CategoryMembership{Categories: []string{"SENIOR"}},
			}),
		},
		Config:         activeConfig("100"),
		Facts:          discountdomain.Facts{CategoryCode: "STUDENT"},
		BaseAmount:     dec("5000"),
		RoundingPlaces: 2,
	})

	require.Len(t, result.Discounts, 1)
	assert.Equal(t, []string{"student"}, result.Discounts[0].RuleCodes)
	assert.True(t, dec("-2000").Equal(result.Total()))
	assert.Empty(t, result.Skipped)
}

func TestEngine_InactiveConfigDisablesRules(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	cfg := activeConfig("100")
	cfg.Active = false

	result := engine.Run(EngineInput{
		Rules:          []discountdomain.Rule{newRule(t, 1, "all", discountdomain.ModeCumulative, fixed("10"), nil)},
		Config:         cfg,
		BaseAmount:     dec("1000"),
		RoundingPlaces: 2,
	})
	assert.Empty(t, result.Discounts)
	assert.True(t, result.Total().IsZero())
}

func TestEngine_ScopesBaseAndActivities(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	result := engine.Run(EngineInput{
		Rules: []discountdomain.Rule{
			newRule(t, 1, "activities", discountdomain.ModeCapped, fixed("50"), nil, func(r *discountdomain.Rule) {
				r.AppliesToBase = false
				r.AppliesToActivities = true
			}),
			newRule(t, 2, "both", discountdomain.ModeCustom, fixed("10"), nil, func(r *discountdomain.Rule) {
				r.AppliesToActivities = true
			}),
		},
		Config:           activeConfig("100"),
		BaseAmount:       dec("1000"),
		ActivitiesAmount: dec("400"),
		RoundingPlaces:   2,
	})

	require.Len(t, result.Discounts, 2)
	assert.True(t, dec("400").Equal(result.Discounts[0].Base))
	assert.True(t, dec("-200").Equal(result.Discounts[0].Amount))
	assert.True(t, dec("1400").Equal(result.Discounts[1].Base))
	assert.True(t, dec("-140").Equal(result.Discounts[1].Amount))
}

func TestEngine_ExclusiveTieUsesPriorityOrder(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	rules := []discountdomain.Rule{
		newRule(t, 1, "late", discountdomain.ModeExclusive, fixed("20"), nil, func(r *discountdomain.Rule) { r.Priority = 50 }),
		newRule(t, 2, "early", discountdomain.ModeExclusive, fixed("20"), nil, func(r *discountdomain.Rule) { r.Priority = 10 }),
	}

	result := engine.Run(EngineInput{Rules: rules, Config: activeConfig("100"), BaseAmount: dec("1000"), RoundingPlaces: 2})
	require.Len(t, result.Discounts, 1)
	assert.Equal(t, []string{"early"}, result.Discounts[0].RuleCodes)

	// An explicit priority order overrides the numeric priority.
	result = engine.Run(EngineInput{Rules: rules, Config: activeConfig("100", "late"), BaseAmount: dec("1000"), RoundingPlaces: 2})
	require.Len(t, result.Discounts, 1)
	assert.Equal(t, []string{"late"}, result.Discounts[0].RuleCodes)
}

func TestEngine_UnknownConditionWarnsAndSkips(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	engine := NewEngine(zap.New(core))

	rule := newRule(t, 7, "future", discountdomain.ModeCumulative, fixed("10"), nil)
	rule.Conditions = datatypes.JSON(`[{"type":"moon_phase","params":{"phase":"full"}}]`)

	result := engine.Run(EngineInput{
		Rules:          []discountdomain.Rule{rule, newRule(t, 8, "everyone", discountdomain.ModeCumulative, fixed("5"), nil)},
		Config:         activeConfig("100"),
		BaseAmount:     dec("1000"),
		RoundingPlaces: 2,
	})

	require.Len(t, result.Discounts, 1)
	assert.Equal(t, []string{"everyone"}, result.Discounts[0].RuleCodes)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, discountdomain.SkipUnknownType, result.Skipped[0].Reason)

	entries := logs.FilterField(zap.String("variant", "moon_phase")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestEngine_MalformedAndUnknownFormulaSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	engine := NewEngine(zap.New(core))

	malformed := newRule(t, 1, "malformed", discountdomain.ModeCumulative, fixed("10"), nil)
	malformed.Formula = datatypes.JSON(`{"type":"fixed_percentage","params":{"percent":[1]}}`)
	unknown := newRule(t, 2, "unknown", discountdomain.ModeCumulative, fixed("10"), nil)
	unknown.Formula = datatypes.JSON(`{"type":"lottery"}`)

	result := engine.Run(EngineInput{
		Rules:          []discountdomain.Rule{malformed, unknown},
		Config:         activeConfig("100"),
		BaseAmount:     dec("1000"),
		RoundingPlaces: 2,
	})

	assert.Empty(t, result.Discounts)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, discountdomain.SkipMalformed, result.Skipped[0].Reason)
	assert.Equal(t, discountdomain.SkipFormula, result.Skipped[1].Reason)
	assert.Equal(t, 2, logs.Len())
}

func TestEngine_ZeroPercentDropsRule(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	result := engine.Run(EngineInput{
		Rules: []discountdomain.Rule{
			newRule(t, 1, "catalog", discountdomain.ModeCumulative, discountdomain.CategoryCatalogPercentage{}, nil),
		},
		Config:         activeConfig("100"),
		Facts:          discountdomain.Facts{CategoryDiscountPercent: decimal.Zero},
		BaseAmount:     dec("1000"),
		RoundingPlaces: 2,
	})
	assert.Empty(t, result.Discounts)
	assert.Empty(t, result.Applications)
}

func TestConditionEvaluator(t *testing.T) {
	evaluator := NewConditionEvaluator(zap.NewNop())
	tenure := func(m int) *int { return &m }

	tests := []struct {
		name  string
		cond  discountdomain.Condition
		facts discountdomain.Facts
		want  bool
	}{
		{"category match", discountdomain.CategoryMembership{Categories: []string{"A", "B"}}, discountdomain.Facts{CategoryCode: "B"}, true},
		{"category miss", discountdomain.CategoryMembership{Categories: []string{"A"}}, discountdomain.Facts{CategoryCode: "C"}, false},
		{"family link any", discountdomain.HasActiveFamilyLink{}, discountdomain.Facts{FamilyLinks: 1}, true},
		{"family link requires active link", discountdomain.HasActiveFamilyLink{RequireActiveLink: true}, discountdomain.Facts{FamilyLinks: 2}, false},
		{"family link min links", discountdomain.HasActiveFamilyLink{MinLinks: 2}, discountdomain.Facts{FamilyLinks: 1}, false},
		{"activity range open", discountdomain.ActivityCountRange{Min: 2}, discountdomain.Facts{ActiveActivities: 9}, true},
		{"activity range below", discountdomain.ActivityCountRange{Min: 2, Max: intPtr(3)}, discountdomain.Facts{ActiveActivities: 1}, false},
		{"activity range above", discountdomain.ActivityCountRange{Min: 2, Max: intPtr(3)}, discountdomain.Facts{ActiveActivities: 4}, false},
		{"tenure met", discountdomain.TenureMonthsMin{Months: 24}, discountdomain.Facts{TenureMonths: tenure(24)}, true},
		{"tenure unknown", discountdomain.TenureMonthsMin{Months: 0}, discountdomain.Facts{}, false},
		{"first year member", discountdomain.CustomCondition{Predicate: discountdomain.PredicateFirstYearMember}, discountdomain.Facts{TenureMonths: tenure(3)}, true},
		{"no activities", discountdomain.CustomCondition{Predicate: discountdomain.PredicateNoActivities}, discountdomain.Facts{ActiveActivities: 1}, false},
		{"multi activity", discountdomain.CustomCondition{Predicate: discountdomain.PredicateMultiActivity}, discountdomain.Facts{ActiveActivities: 2}, true},
		{"unknown predicate", discountdomain.CustomCondition{Predicate: "astrology"}, discountdomain.Facts{}, false},
		{"unknown variant", discountdomain.UnknownCondition{Type: "x"}, discountdomain.Facts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := discountdomain.CompiledRule{Conditions: []discountdomain.Condition{tt.cond}}
			assert.Equal(t, tt.want, evaluator.Evaluate(rule, tt.facts))
		})
	}
}

func TestFormulaResolver(t *testing.T) {
	resolver := NewFormulaResolver()
	months := func(m int) *int { return &m }
	three := dec("3")

	tiers := discountdomain.TieredByActivityCount{Tiers: []discountdomain.Tier{
		{Min: 2, Max: intPtr(2), Percent: dec("10")},
		{Min: 3, Percent: dec("20")},
	}}

	tests := []struct {
		name    string
		formula discountdomain.Formula
		facts   discountdomain.Facts
		want    string
		wantErr bool
	}{
		{name: "fixed", formula: fixed("12.5"), want: "12.5"},
		{name: "catalog", formula: discountdomain.CategoryCatalogPercentage{}, facts: discountdomain.Facts{CategoryDiscountPercent: dec("7")}, want: "7"},
		{name: "tier hit", formula: tiers, facts: discountdomain.Facts{ActiveActivities: 5}, want: "20"},
		{name: "tier miss", formula: tiers, facts: discountdomain.Facts{ActiveActivities: 1}, want: "0"},
		{name: "family link max", formula: discountdomain.CustomFormula{Function: discountdomain.FunctionMaxFamilyLinkDiscount}, facts: discountdomain.Facts{MaxFamilyLinkDiscount: dec("15")}, want: "15"},
		{name: "tenure years", formula: discountdomain.CustomFormula{Function: discountdomain.FunctionTenureYears}, facts: discountdomain.Facts{TenureMonths: months(71)}, want: "5"},
		{name: "tenure capped", formula: discountdomain.CustomFormula{Function: discountdomain.FunctionTenureYears}, facts: discountdomain.Facts{TenureMonths: months(240)}, want: "15"},
		{name: "tenure custom rate", formula: discountdomain.CustomFormula{Function: discountdomain.FunctionTenureYears, PercentPerYear: &three}, facts: discountdomain.Facts{TenureMonths: months(36)}, want: "9"},
		{name: "tenure unknown", formula: discountdomain.CustomFormula{Function: discountdomain.FunctionTenureYears}, want: "0"},
		{name: "unknown function", formula: discountdomain.CustomFormula{Function: "dice"}, wantErr: true},
		{name: "unknown formula", formula: discountdomain.UnknownFormula{Type: "dice"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(discountdomain.CompiledRule{Formula: tt.formula}, tt.facts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), got.String())
		})
	}
}

func TestOrderRules(t *testing.T) {
	rules := []discountdomain.Rule{
		{ID: 3, Code: "c", Priority: 1},
		{ID: 1, Code: "a", Priority: 5},
		{ID: 2, Code: "b", Priority: 5},
		{ID: 4, Code: "d", Priority: 9},
	}

	ordered := OrderRules(rules, []string{"d", "missing"})
	codes := make([]string, 0, len(ordered))
	for _, r := range ordered {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, codes)
	assert.Equal(t, "c", rules[0].Code, "input is not reordered")
}
