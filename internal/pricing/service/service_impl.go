package service

import (
	"context"

	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	"github.com/smallbiznis/cuotas/internal/config"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	discountservice "github.com/smallbiznis/cuotas/internal/discount/service"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/period"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log            *zap.Logger
	Pricing        *config.PricingConfigHolder
	Engine         *discountservice.Engine
	Metrics        *metrics.Metrics `optional:"true"`
	Catalog        memberdomain.CategoryCatalog
	FamilyLinks    memberdomain.FamilyLinkRepository
	Participations memberdomain.ActivityParticipationRepository
	Tenure         memberdomain.TenureLookup
	Discounts      discountdomain.Service
	Adjustments    adjustmentdomain.Service
	Exemptions     exemptiondomain.Service
}

type Service struct {
	log            *zap.Logger
	pricing        *config.PricingConfigHolder
	pipeline       *Pipeline
	metrics        *metrics.Metrics
	catalog        memberdomain.CategoryCatalog
	familyLinks    memberdomain.FamilyLinkRepository
	participations memberdomain.ActivityParticipationRepository
	tenure         memberdomain.TenureLookup
	discounts      discountdomain.Service
	adjustments    adjustmentdomain.Service
	exemptions     exemptiondomain.Service
}

func NewService(p Params) pricingdomain.Service {
	return &Service{
		log:            p.Log.Named("pricing.service"),
		pricing:        p.Pricing,
		pipeline:       NewPipeline(p.Engine),
		metrics:        p.Metrics,
		catalog:        p.Catalog,
		familyLinks:    p.FamilyLinks,
		participations: p.Participations,
		tenure:         p.Tenure,
		discounts:      p.Discounts,
		adjustments:    p.Adjustments,
		exemptions:     p.Exemptions,
	}
}

func (s *Service) Quote(ctx context.Context, subject pricingdomain.Subject) (*pricingdomain.Quote, error) {
	in, err := s.Load(ctx, subject)
	if err != nil {
		return nil, err
	}

	breakdown := s.pipeline.Price(in)
	for _, skipped := range breakdown.Skipped {
		s.metrics.RecordRuleSkipped(ctx, skipped.Reason)
	}

	return &pricingdomain.Quote{Subject: subject, Breakdown: breakdown}, nil
}

// Load gathers every collaborator value the pipeline needs. Nothing is
// cached between calls.
func (s *Service) Load(ctx context.Context, subject pricingdomain.Subject) (pricingdomain.Input, error) {
	if !subject.Period.Valid() {
		return pricingdomain.Input{}, pricingdomain.ErrInvalidPeriod
	}

	category, err := s.catalog.GetCategory(ctx, subject.CategoryID)
	if err != nil {
		return pricingdomain.Input{}, wrap(err, "load category %s", subject.CategoryID)
	}

	facts, err := s.loadFacts(ctx, subject, category)
	if err != nil {
		return pricingdomain.Input{}, err
	}

	activities, err := s.participations.SumCost(ctx, subject.PersonID, subject.Period)
	if err != nil {
		return pricingdomain.Input{}, wrap(err, "sum activity cost for person %s", subject.PersonID)
	}

	ruleSet, err := s.discounts.LoadRuleSet(ctx)
	if err != nil {
		return pricingdomain.Input{}, wrap(err, "load discount rules")
	}

	adjustments, err := s.adjustments.ActiveForPeriod(ctx, subject.PersonID, subject.Period)
	if err != nil {
		return pricingdomain.Input{}, wrap(err, "load adjustments for person %s", subject.PersonID)
	}

	exemption, err := s.exemptions.ActiveForPeriod(ctx, subject.PersonID, subject.Period)
	if err != nil {
		return pricingdomain.Input{}, wrap(err, "load exemption for person %s", subject.PersonID)
	}

	return pricingdomain.Input{
		BaseAmount:       category.BasePrice,
		ActivitiesAmount: activities,
		RuleSet:          ruleSet,
		Facts:            facts,
		Adjustments:      adjustments,
		Exemption:        exemption,
		RoundingPlaces:   s.pricing.Get().RoundingPlaces,
	}, nil
}

func (s *Service) loadFacts(ctx context.Context, subject pricingdomain.Subject, category *memberdomain.Category) (discountdomain.Facts, error) {
	facts := discountdomain.Facts{
		CategoryCode:            category.Code,
		CategoryDiscountPercent: category.DiscountPercent,
	}

	var err error
	if facts.FamilyLinks, err = s.familyLinks.CountLinks(ctx, subject.PersonID); err != nil {
		return facts, wrap(err, "count family links for person %s", subject.PersonID)
	}
	if facts.ActiveFamilyLinks, err = s.familyLinks.CountActiveLinks(ctx, subject.PersonID); err != nil {
		return facts, wrap(err, "count active family links for person %s", subject.PersonID)
	}
	if facts.MaxFamilyLinkDiscount, err = s.familyLinks.MaxLinkDiscount(ctx, subject.PersonID); err != nil {
		return facts, wrap(err, "max family link discount for person %s", subject.PersonID)
	}
	if facts.ActiveActivities, err = s.participations.CountActive(ctx, subject.PersonID); err != nil {
		return facts, wrap(err, "count activities for person %s", subject.PersonID)
	}

	start, err := s.tenure.MembershipStartDate(ctx, subject.PersonID)
	if err != nil {
		return facts, wrap(err, "membership start for person %s", subject.PersonID)
	}
	if start != nil {
		months := period.WholeMonthsBetween(*start, subject.Period.AsOf())
		facts.TenureMonths = &months
	}
	return facts, nil
}

func wrap(err error, format string, args ...any) error {
	return ierr.WithError(err).WithMessagef(format, args...).Error()
}
