package service

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"go.uber.org/zap"
)

// EngineInput is everything one discount run needs. It is read fresh per run.
type EngineInput struct {
	Rules            []discountdomain.Rule
	Config           discountdomain.GlobalConfig
	Facts            discountdomain.Facts
	BaseAmount       decimal.Decimal
	ActivitiesAmount decimal.Decimal
	RoundingPlaces   int32
}

// Engine evaluates rules, resolves their formulas and combines the result.
// It holds no state between runs.
type Engine struct {
	log       *zap.Logger
	evaluator *ConditionEvaluator
	formulas  *FormulaResolver
}

func NewEngine(log *zap.Logger) *Engine {
	log = log.Named("discount.engine")
	return &Engine{
		log:       log,
		evaluator: NewConditionEvaluator(log),
		formulas:  NewFormulaResolver(),
	}
}

func (e *Engine) Run(in EngineInput) discountdomain.EngineResult {
	var result discountdomain.EngineResult
	if !in.Config.Active {
		return result
	}

	var applicable []discountdomain.ApplicableDiscount
	for _, rule := range OrderRules(in.Rules, in.Config.RulePriorityOrder) {
		if !rule.Active {
			continue
		}

		compiled, err := discountdomain.Compile(rule)
		if err != nil {
			e.skip(&result, rule, discountdomain.SkipMalformed, err)
			continue
		}
		if lo.ContainsBy(compiled.Conditions, isUnknownCondition) {
			// Evaluate logs the offending variant.
			e.evaluator.Evaluate(compiled, in.Facts)
			result.Skipped = append(result.Skipped, discountdomain.SkippedRule{
				RuleID:   rule.ID,
				RuleCode: rule.Code,
				Reason:   discountdomain.SkipUnknownType,
			})
			continue
		}
		if !e.evaluator.Evaluate(compiled, in.Facts) {
			continue
		}

		percent, err := e.formulas.Resolve(compiled, in.Facts)
		if err != nil {
			e.skip(&result, rule, discountdomain.SkipFormula, err)
			continue
		}
		if !percent.IsPositive() {
			continue
		}

		applicable = append(applicable, discountdomain.ApplicableDiscount{
			Rule:    rule,
			Percent: percent,
			Base:    scopeBase(rule, in),
		})
	}

	result.Discounts, result.Applications = ResolveConflicts(applicable, in.Config.GlobalCapPercent, in.RoundingPlaces)
	return result
}

func (e *Engine) skip(result *discountdomain.EngineResult, rule discountdomain.Rule, reason string, err error) {
	e.log.Warn("discount rule skipped",
		zap.String("rule_id", rule.ID.String()),
		zap.String("rule_code", rule.Code),
		zap.String("reason", reason),
		zap.Bool("configuration_error", ierr.IsConfiguration(err)),
		zap.Error(err),
	)
	result.Skipped = append(result.Skipped, discountdomain.SkippedRule{
		RuleID:   rule.ID,
		RuleCode: rule.Code,
		Reason:   reason,
	})
}

// scopeBase sums the gross line items the rule is scoped to.
func scopeBase(rule discountdomain.Rule, in EngineInput) decimal.Decimal {
	base := decimal.Zero
	if rule.AppliesToBase {
		base = base.Add(in.BaseAmount)
	}
	if rule.AppliesToActivities {
		base = base.Add(in.ActivitiesAmount)
	}
	return base
}

func isUnknownCondition(c discountdomain.Condition) bool {
	_, ok := c.(discountdomain.UnknownCondition)
	return ok
}

// OrderRules returns rules in effective order: codes named in priorityOrder
// first in that order, then by priority ascending, then by id.
func OrderRules(rules []discountdomain.Rule, priorityOrder []string) []discountdomain.Rule {
	rank := make(map[string]int, len(priorityOrder))
	for i, code := range priorityOrder {
		if _, seen := rank[code]; !seen {
			rank[code] = i
		}
	}

	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b discountdomain.Rule) int {
		ra, aListed := rank[a.Code]
		rb, bListed := rank[b.Code]
		switch {
		case aListed && bListed:
			if c := cmp.Compare(ra, rb); c != 0 {
				return c
			}
		case aListed:
			return -1
		case bListed:
			return 1
		}
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ordered
}
