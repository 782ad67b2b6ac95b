package service

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	adjustmentservice "github.com/smallbiznis/cuotas/internal/adjustment/service"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	discountservice "github.com/smallbiznis/cuotas/internal/discount/service"
	exemptionservice "github.com/smallbiznis/cuotas/internal/exemption/service"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
)

// Pipeline prices one loaded input in a fixed order: base, activities,
// discount engine, adjustments, exemption. It performs no I/O.
type Pipeline struct {
	engine *discountservice.Engine
}

func NewPipeline(engine *discountservice.Engine) *Pipeline {
	return &Pipeline{engine: engine}
}

func (p *Pipeline) Price(in pricingdomain.Input) pricingdomain.Breakdown {
	places := in.RoundingPlaces
	base := nonNegative(in.BaseAmount).Round(places)
	activities := nonNegative(in.ActivitiesAmount).Round(places)

	b := pricingdomain.Breakdown{
		BaseAmount:       base,
		ActivitiesAmount: activities,
		Gross:            base.Add(activities),
	}

	b.Lines = append(b.Lines, pricingdomain.Line{
		Kind:      pricingdomain.LineBase,
		Concept:   "Base dues",
		Amount:    base,
		Automatic: true,
	})
	if !activities.IsZero() {
		b.Lines = append(b.Lines, pricingdomain.Line{
			Kind:      pricingdomain.LineActivities,
			Concept:   "Activities",
			Amount:    activities,
			Automatic: true,
		})
	}

	engineResult := p.engine.Run(discountservice.EngineInput{
		Rules:            in.RuleSet.Rules,
		Config:           in.RuleSet.Config,
		Facts:            in.Facts,
		BaseAmount:       base,
		ActivitiesAmount: activities,
		RoundingPlaces:   places,
	})
	b.Applications = engineResult.Applications
	b.Skipped = engineResult.Skipped

	running := b.Gross
	for _, d := range engineResult.Discounts {
		if d.Amount.IsZero() {
			continue
		}
		b.Lines = append(b.Lines, discountLine(d))
		running = running.Add(d.Amount)
	}
	if running.IsNegative() {
		b.Lines = append(b.Lines, pricingdomain.Line{
			Kind:      pricingdomain.LineDiscountFloor,
			Concept:   "Discounts limited to gross amount",
			Amount:    running.Neg(),
			Automatic: true,
		})
		running = decimal.Zero
	}
	b.AfterDiscounts = running

	running, b.Steps = adjustmentservice.Sequence(in.Adjustments, running, places)
	for i, step := range b.Steps {
		if step.Delta.IsZero() {
			continue
		}
		b.Lines = append(b.Lines, adjustmentLine(in.Adjustments[i], step))
	}
	b.AfterAdjustments = running

	running, b.Exemption = exemptionservice.Apply(in.Exemption, running, places)
	if b.Exemption != nil && !b.Exemption.Delta.IsZero() {
		b.Lines = append(b.Lines, pricingdomain.Line{
			Kind:      pricingdomain.LineExemption,
			Concept:   fmt.Sprintf("Exemption %s%%", b.Exemption.Percent.String()),
			Amount:    b.Exemption.Delta,
			Automatic: true,
			Provenance: map[string]any{
				"exemption_id": b.Exemption.ExemptionID.String(),
				"kind":         string(b.Exemption.Kind),
				"percent":      b.Exemption.Percent.String(),
			},
		})
	}

	b.Total = nonNegative(running)
	return b
}

func discountLine(d discountdomain.ResolvedDiscount) pricingdomain.Line {
	ids := lo.Map(d.RuleIDs, func(id snowflake.ID, _ int) string { return id.String() })
	return pricingdomain.Line{
		Kind:      pricingdomain.LineDiscount,
		Concept:   fmt.Sprintf("Discount %s (%s%%)", strings.Join(d.RuleCodes, " + "), d.Percent.String()),
		Amount:    d.Amount,
		Automatic: true,
		Provenance: map[string]any{
			"mode":       string(d.Mode),
			"rule_ids":   ids,
			"rule_codes": d.RuleCodes,
			"percent":    d.Percent.String(),
			"base":       d.Base.String(),
		},
	}
}

func adjustmentLine(adj adjustmentdomain.Adjustment, step adjustmentdomain.StepRecord) pricingdomain.Line {
	concept := "Adjustment " + strings.ReplaceAll(string(adj.Kind), "_", " ")
	if adj.Reason != nil && strings.TrimSpace(*adj.Reason) != "" {
		concept += ": " + strings.TrimSpace(*adj.Reason)
	}
	provenance := map[string]any{
		"adjustment_id": adj.ID.String(),
		"kind":          string(adj.Kind),
		"value":         adj.Value.String(),
		"scope":         string(adj.Scope),
		"pre":           step.Pre.String(),
		"post":          step.Post.String(),
	}
	if len(adj.ItemCodes) > 0 {
		provenance["item_codes"] = []string(adj.ItemCodes)
	}
	return pricingdomain.Line{
		Kind:       pricingdomain.LineAdjustment,
		Concept:    concept,
		Amount:     step.Delta,
		Automatic:  false,
		Provenance: provenance,
	}
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
