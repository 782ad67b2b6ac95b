package service

import (
	"slices"

	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	"go.uber.org/zap"
)

// ConditionEvaluator decides whether a rule applies to a member.
type ConditionEvaluator struct {
	log *zap.Logger
}

func NewConditionEvaluator(log *zap.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{log: log}
}

// Evaluate ANDs the rule conditions. A rule without conditions applies to
// every member. Unknown conditions evaluate to false and are logged.
func (e *ConditionEvaluator) Evaluate(rule discountdomain.CompiledRule, facts discountdomain.Facts) bool {
	for _, cond := range rule.Conditions {
		if !e.evaluate(rule.Rule, cond, facts) {
			return false
		}
	}
	return true
}

func (e *ConditionEvaluator) evaluate(rule discountdomain.Rule, cond discountdomain.Condition, facts discountdomain.Facts) bool {
	switch c := cond.(type) {
	case discountdomain.CategoryMembership:
		return facts.CategoryCode != "" && slices.Contains(c.Categories, facts.CategoryCode)
	case discountdomain.HasActiveFamilyLink:
		minLinks := max(c.MinLinks, 1)
		if c.RequireActiveLink {
			return facts.ActiveFamilyLinks >= minLinks
		}
		return facts.FamilyLinks >= minLinks
	case discountdomain.ActivityCountRange:
		if facts.ActiveActivities < c.Min {
			return false
		}
		return c.Max == nil || facts.ActiveActivities <= *c.Max
	case discountdomain.TenureMonthsMin:
		return facts.TenureMonths != nil && *facts.TenureMonths >= c.Months
	case discountdomain.CustomCondition:
		return e.evaluateCustom(rule, c, facts)
	default:
		e.log.Warn("unknown condition variant, rule does not apply",
			zap.String("rule_id", rule.ID.String()),
			zap.String("rule_code", rule.Code),
			zap.String("variant", string(cond.ConditionType())),
		)
		return false
	}
}

func (e *ConditionEvaluator) evaluateCustom(rule discountdomain.Rule, c discountdomain.CustomCondition, facts discountdomain.Facts) bool {
	switch c.Predicate {
	case discountdomain.PredicateFirstYearMember:
		return facts.TenureMonths != nil && *facts.TenureMonths < 12
	case discountdomain.PredicateNoActivities:
		return facts.ActiveActivities == 0
	case discountdomain.PredicateMultiActivity:
		return facts.ActiveActivities >= 2
	default:
		e.log.Warn("unknown custom predicate, rule does not apply",
			zap.String("rule_id", rule.ID.String()),
			zap.String("rule_code", rule.Code),
			zap.String("variant", c.Predicate),
		)
		return false
	}
}
