package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CompiledRule is a Rule with its condition and formula envelopes decoded.
type CompiledRule struct {
	Rule       Rule
	Conditions []Condition
	Formula    Formula
}

// Compile decodes a stored rule. Unknown condition tags survive as
// UnknownCondition; an unknown formula, mode or resolution is a
// configuration error and the rule cannot be priced.
func Compile(rule Rule) (CompiledRule, error) {
	conds, err := DecodeConditions(rule.Conditions)
	if err != nil {
		return CompiledRule{}, err
	}
	formula, err := DecodeFormula(rule.Formula)
	if err != nil {
		return CompiledRule{}, err
	}
	if !rule.ApplicationMode.Valid() {
		return CompiledRule{}, ErrMisconfiguredRule
	}
	if !rule.CustomResolution.Valid() {
		return CompiledRule{}, ErrMisconfiguredRule
	}
	return CompiledRule{Rule: rule, Conditions: conds, Formula: formula}, nil
}

// ApplicableDiscount is a rule whose conditions matched and whose formula
// produced a positive percent.
type ApplicableDiscount struct {
	Rule    Rule
	Percent decimal.Decimal
	// Base is the gross amount of the line items the rule is scoped to.
	Base decimal.Decimal
}

// ResolvedDiscount becomes one negative discount line item.
type ResolvedDiscount struct {
	Mode      ApplicationMode
	Percent   decimal.Decimal
	Base      decimal.Decimal
	Amount    decimal.Decimal
	RuleIDs   []snowflake.ID
	RuleCodes []string
}

// RuleApplication records what the resolver did with one applicable rule.
type RuleApplication struct {
	RuleID           snowflake.ID    `json:"rule_id"`
	RuleCode         string          `json:"rule_code"`
	Mode             ApplicationMode `json:"mode"`
	RequestedPercent decimal.Decimal `json:"requested_percent"`
	AppliedPercent   decimal.Decimal `json:"applied_percent"`
	Base             decimal.Decimal `json:"base"`
	Amount           decimal.Decimal `json:"amount"`
	Applied          bool            `json:"applied"`
	Note             string          `json:"note,omitempty"`
}

const (
	NoteSuperseded = "superseded"
	NoteCapped     = "capped"
)

// SkippedRule is a rule left out of a run because it could not be evaluated.
type SkippedRule struct {
	RuleID   snowflake.ID `json:"rule_id"`
	RuleCode string       `json:"rule_code"`
	Reason   string       `json:"reason"`
}

// Skip reasons, also used as metric attributes.
const (
	SkipMalformed   = "malformed"
	SkipUnknownType = "unknown_variant"
	SkipFormula     = "formula_error"
)

// EngineResult is the discount stage of one pricing run.
type EngineResult struct {
	Discounts    []ResolvedDiscount
	Applications []RuleApplication
	Skipped      []SkippedRule
}

// Total is the sum of the discount amounts, a non-positive number.
func (r EngineResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Discounts {
		total = total.Add(d.Amount)
	}
	return total
}
