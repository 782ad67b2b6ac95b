package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	"github.com/smallbiznis/cuotas/internal/period"
)

type LineKind string

const (
	LineBase       LineKind = "base"
	LineActivities LineKind = "activities"
	LineDiscount   LineKind = "discount"
	// LineDiscountFloor offsets discount groups that together exceed the
	// gross amount so the discount stage never goes below zero.
	LineDiscountFloor LineKind = "discount_floor"
	LineAdjustment    LineKind = "adjustment"
	LineExemption     LineKind = "exemption"
)

// Line is one signed component of a priced cuota, in pipeline order.
type Line struct {
	Kind       LineKind        `json:"kind"`
	Concept    string          `json:"concept"`
	Amount     decimal.Decimal `json:"amount"`
	Automatic  bool            `json:"automatic"`
	Provenance map[string]any  `json:"provenance,omitempty"`
}

// Subject identifies what is being priced.
type Subject struct {
	PersonID   snowflake.ID
	CategoryID snowflake.ID
	Period     period.Period
}

// Input is the full, already loaded input of one pipeline run.
type Input struct {
	BaseAmount       decimal.Decimal
	ActivitiesAmount decimal.Decimal
	RuleSet          discountdomain.RuleSet
	Facts            discountdomain.Facts
	Adjustments      []adjustmentdomain.Adjustment
	Exemption        *exemptiondomain.Exemption
	RoundingPlaces   int32
}

// Breakdown is the result of one pipeline run. Total always equals the sum
// of Lines.
type Breakdown struct {
	BaseAmount       decimal.Decimal                   `json:"base_amount"`
	ActivitiesAmount decimal.Decimal                   `json:"activities_amount"`
	Gross            decimal.Decimal                   `json:"gross"`
	AfterDiscounts   decimal.Decimal                   `json:"after_discounts"`
	AfterAdjustments decimal.Decimal                   `json:"after_adjustments"`
	Total            decimal.Decimal                   `json:"total"`
	Lines            []Line                            `json:"lines"`
	Applications     []discountdomain.RuleApplication  `json:"rule_applications"`
	Skipped          []discountdomain.SkippedRule      `json:"skipped_rules,omitempty"`
	Steps            []adjustmentdomain.StepRecord     `json:"adjustment_steps,omitempty"`
	Exemption        *exemptiondomain.AppliedExemption `json:"exemption,omitempty"`
}

// LinesTotal sums the line amounts.
func (b Breakdown) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

// Quote is a priced subject.
type Quote struct {
	Subject   Subject
	Breakdown Breakdown
}
