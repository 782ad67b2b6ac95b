package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/observability/tracing"
	"github.com/smallbiznis/cuotas/internal/period"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
	"github.com/smallbiznis/cuotas/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Pricing   *config.PricingConfigHolder
	Repo      cuotadomain.Repository
	Quotes    pricingdomain.Service
	Directory memberdomain.Directory
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	pricing   *config.PricingConfigHolder
	repo      cuotadomain.Repository
	quotes    pricingdomain.Service
	directory memberdomain.Directory
	audit     auditdomain.Service
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(p Params) cuotadomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("cuota.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		pricing:   p.Pricing,
		repo:      p.Repo,
		quotes:    p.Quotes,
		directory: p.Directory,
		audit:     p.Audit,
		metrics:   p.Metrics,
		tracer:    otel.Tracer("cuotas/cuota"),
	}
}

func (s *Service) Generate(ctx context.Context, req cuotadomain.GenerateRequest) (result *cuotadomain.GenerationResult, err error) {
	if !req.Period.Valid() {
		return nil, cuotadomain.ErrInvalidPeriod
	}

	ctx, span := s.startSpan(ctx, "cuota.Generate", attribute.String("period", req.Period.String()))
	defer func() { endSpan(span, err) }()

	return s.generate(ctx, req, newRunID())
}

func (s *Service) generate(ctx context.Context, req cuotadomain.GenerateRequest, runID string) (*cuotadomain.GenerationResult, error) {
	persons, err := s.directory.ListActivePersons(ctx, memberdomain.PersonFilter{
		PersonIDs:   req.Selection.PersonIDs,
		CategoryIDs: req.Selection.CategoryIDs,
	})
	if err != nil {
		return nil, err
	}
	return s.generateFor(ctx, persons, req.Period, req.Actor, runID)
}

// generateFor bills each person that has no cuota for the period yet.
func (s *Service) generateFor(ctx context.Context, persons []memberdomain.Person, p period.Period, actor, runID string) (*cuotadomain.GenerationResult, error) {
	var existing []cuotadomain.Cuota
	if len(persons) > 0 {
		var err error
		existing, err = s.repo.List(ctx, s.db, cuotadomain.ListFilter{
			Period: &p,
			Selection: cuotadomain.Selection{
				PersonIDs: lo.Map(persons, func(m memberdomain.Person, _ int) snowflake.ID { return m.ID }),
			},
		})
		if err != nil {
			return nil, err
		}
	}
	billed := lo.SliceToMap(existing, func(c cuotadomain.Cuota) (snowflake.ID, struct{}) {
		return c.PersonID, struct{}{}
	})

	result := &cuotadomain.GenerationResult{
		RunID:  runID,
		Period: p.String(),
	}
	for _, person := range persons {
		if _, ok := billed[person.ID]; ok {
			result.Skipped++
			continue
		}

		cuota, stage, err := s.createOne(ctx, person, p, runID, actor)
		if err != nil && db.IsDuplicateKeyErr(err) {
			// billed by a concurrent run after the existing list was read
			result.Skipped++
			continue
		}
		if err != nil {
			result.Failed = append(result.Failed, s.batchError(ctx, person.ID, nil, stage, err))
			continue
		}
		result.Generated++
		result.CuotaIDs = append(result.CuotaIDs, cuota.ID)
	}

	s.metrics.RecordGenerated(ctx, result.Generated)
	s.log.Info("cuotas generated",
		zap.String("run_id", runID),
		zap.String("period", result.Period),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *Service) createOne(ctx context.Context, person memberdomain.Person, p period.Period, runID, actor string) (*cuotadomain.Cuota, string, error) {
	quote, err := s.quotes.Quote(ctx, pricingdomain.Subject{
		PersonID:   person.ID,
		CategoryID: person.CategoryID,
		Period:     p,
	})
	if err != nil {
		return nil, cuotadomain.StagePricing, err
	}

	now := s.clock.Now()
	breakdown := quote.Breakdown
	cuota := &cuotadomain.Cuota{
		ID:               s.genID.Generate(),
		PersonID:         person.ID,
		CategoryID:       person.CategoryID,
		Year:             p.Year,
		Month:            int(p.Month),
		BaseAmount:       breakdown.BaseAmount,
		ActivitiesAmount: breakdown.ActivitiesAmount,
		TotalAmount:      breakdown.Total,
		Status:           cuotadomain.StatusUnpaid,
		RunID:            runID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	cuota.Items = s.lineItems(cuota.ID, breakdown)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, cuota); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, cuota.Items); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     auditdomain.ActionCuotaCreate,
			TargetType: auditdomain.TargetCuota,
			TargetID:   cuota.ID.String(),
			After:      cuota,
			Actor:      s.actor(actor),
			Metadata:   map[string]any{"run_id": runID, "period": p.String()},
		})
		return err
	})
	if err != nil {
		return nil, cuotadomain.StagePersist, err
	}
	return cuota, "", nil
}

func (s *Service) Recalculate(ctx context.Context, req cuotadomain.RecalculateRequest) (outcome *cuotadomain.RecalculationOutcome, err error) {
	if req.CuotaID == 0 {
		return nil, cuotadomain.ErrInvalidID
	}

	ctx, span := s.startSpan(ctx, "cuota.Recalculate", attribute.String("cuota_id", req.CuotaID.String()))
	defer func() { endSpan(span, err) }()

	current, err := s.find(ctx, req.CuotaID)
	if err != nil {
		return nil, err
	}
	if current.IsPaid() {
		return nil, cuotadomain.ErrPaid
	}

	outcome, _, err = s.recalculate(ctx, current, newRunID(), req.Actor, req.Reason)
	return outcome, err
}

// recalculate prices current again and rewrites it when the total moved by
// more than the configured threshold. The returned stage is set on error.
func (s *Service) recalculate(ctx context.Context, current *cuotadomain.Cuota, runID, actor, reason string) (*cuotadomain.RecalculationOutcome, string, error) {
	quote, err := s.quotes.Quote(ctx, subjectOf(current))
	if err != nil {
		return nil, cuotadomain.StagePricing, err
	}

	breakdown := quote.Breakdown
	delta := breakdown.Total.Sub(current.TotalAmount)
	outcome := &cuotadomain.RecalculationOutcome{
		Cuota:         current,
		PreviousTotal: current.TotalAmount,
		NewTotal:      breakdown.Total,
		Delta:         delta,
		Breakdown:     breakdown,
	}
	if !s.significant(delta) {
		s.metrics.RecordRecalculated(ctx, metrics.OutcomeUnchanged)
		return outcome, "", nil
	}

	var updated *cuotadomain.Cuota
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.FindByID(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if before == nil {
			return cuotadomain.ErrNotFound
		}
		// paid between the quote and this transaction
		if before.IsPaid() {
			return cuotadomain.ErrPaid
		}

		next := *before
		next.BaseAmount = breakdown.BaseAmount
		next.ActivitiesAmount = breakdown.ActivitiesAmount
		next.TotalAmount = breakdown.Total
		next.RunID = runID
		next.UpdatedAt = s.clock.Now()
		next.Items = s.lineItems(next.ID, breakdown)

		if err := s.repo.DeleteItems(ctx, tx, []snowflake.ID{next.ID}); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, next.Items); err != nil {
			return err
		}
		if err := s.repo.UpdateAmounts(ctx, tx, &next); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     auditdomain.ActionCuotaRecalculate,
			TargetType: auditdomain.TargetCuota,
			TargetID:   next.ID.String(),
			Before:     before,
			After:      &next,
			Actor:      s.actor(actor),
			Reason:     reason,
			Metadata: map[string]any{
				"run_id":         runID,
				"previous_total": before.TotalAmount.String(),
				"new_total":      next.TotalAmount.String(),
				"delta":          delta.String(),
			},
		})
		if err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, cuotadomain.StagePersist, err
	}

	s.metrics.RecordRecalculated(ctx, metrics.OutcomeUpdated)
	s.log.Info("cuota recalculated",
		zap.String("cuota_id", updated.ID.String()),
		zap.String("run_id", runID),
		zap.String("previous_total", outcome.PreviousTotal.String()),
		zap.String("new_total", outcome.NewTotal.String()),
	)

	outcome.Cuota = updated
	outcome.Changed = true
	return outcome, "", nil
}

func (s *Service) RecalculatePeriod(ctx context.Context, req cuotadomain.RecalculatePeriodRequest) (result *cuotadomain.RecalculationResult, err error) {
	if !req.Period.Valid() {
		return nil, cuotadomain.ErrInvalidPeriod
	}

	ctx, span := s.startSpan(ctx, "cuota.RecalculatePeriod", attribute.String("period", req.Period.String()))
	defer func() { endSpan(span, err) }()

	cuotas, err := s.repo.List(ctx, s.db, cuotadomain.ListFilter{Period: &req.Period, Selection: req.Selection})
	if err != nil {
		return nil, err
	}

	result = &cuotadomain.RecalculationResult{
		RunID:  newRunID(),
		Period: req.Period.String(),
	}
	for i := range cuotas {
		current := &cuotas[i]
		if current.IsPaid() {
			result.Skipped++
			s.metrics.RecordRecalculated(ctx, metrics.OutcomeSkipped)
			continue
		}

		outcome, stage, err := s.recalculate(ctx, current, result.RunID, req.Actor, req.Reason)
		if err != nil {
			if ierr.Is(err, cuotadomain.ErrPaid) {
				result.Skipped++
				s.metrics.RecordRecalculated(ctx, metrics.OutcomeSkipped)
				continue
			}
			result.Failed = append(result.Failed, s.batchError(ctx, current.PersonID, &current.ID, stage, err))
			continue
		}
		if outcome.Changed {
			result.Updated++
		} else {
			result.Unchanged++
		}
	}

	s.log.Info("period recalculated",
		zap.String("run_id", result.RunID),
		zap.String("period", result.Period),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *Service) Preview(ctx context.Context, req cuotadomain.PreviewRequest) (result *cuotadomain.PreviewResult, err error) {
	ctx, span := s.startSpan(ctx, "cuota.Preview")
	defer func() { endSpan(span, err) }()

	switch {
	case req.CuotaID != nil:
		comparison, err := s.Compare(ctx, *req.CuotaID)
		if err != nil {
			return nil, err
		}
		return &cuotadomain.PreviewResult{Items: []cuotadomain.Comparison{*comparison}}, nil
	case req.Period != nil:
		if !req.Period.Valid() {
			return nil, cuotadomain.ErrInvalidPeriod
		}
	default:
		return nil, cuotadomain.ErrPreviewTarget
	}

	cuotas, err := s.repo.List(ctx, s.db, cuotadomain.ListFilter{Period: req.Period, Selection: req.Selection})
	if err != nil {
		return nil, err
	}

	result = &cuotadomain.PreviewResult{Items: make([]cuotadomain.Comparison, 0, len(cuotas))}
	for i := range cuotas {
		current := &cuotas[i]
		items, err := s.repo.ListItems(ctx, s.db, current.ID)
		if err != nil {
			result.Failed = append(result.Failed, s.batchError(ctx, current.PersonID, &current.ID, cuotadomain.StageLoad, err))
			continue
		}
		current.Items = items

		comparison, err := s.compare(ctx, current)
		if err != nil {
			result.Failed = append(result.Failed, s.batchError(ctx, current.PersonID, &current.ID, cuotadomain.StagePricing, err))
			continue
		}
		result.Items = append(result.Items, *comparison)
	}
	return result, nil
}

func (s *Service) Compare(ctx context.Context, id snowflake.ID) (*cuotadomain.Comparison, error) {
	if id == 0 {
		return nil, cuotadomain.ErrInvalidID
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.compare(ctx, current)
}

func (s *Service) compare(ctx context.Context, current *cuotadomain.Cuota) (*cuotadomain.Comparison, error) {
	quote, err := s.quotes.Quote(ctx, subjectOf(current))
	if err != nil {
		return nil, err
	}

	delta := quote.Breakdown.Total.Sub(current.TotalAmount)
	return &cuotadomain.Comparison{
		CuotaID:      current.ID,
		PersonID:     current.PersonID,
		Period:       current.Period().String(),
		Paid:         current.IsPaid(),
		StoredTotal:  current.TotalAmount,
		NewTotal:     quote.Breakdown.Total,
		Delta:        delta,
		DeltaPercent: deltaPercent(current.TotalAmount, delta),
		Significant:  s.significant(delta),
		StoredItems:  current.Items,
		Breakdown:    quote.Breakdown,
	}, nil
}

func (s *Service) Regenerate(ctx context.Context, req cuotadomain.RegenerateRequest) (result *cuotadomain.RegenerationResult, err error) {
	if !req.Period.Valid() {
		return nil, cuotadomain.ErrInvalidPeriod
	}

	ctx, span := s.startSpan(ctx, "cuota.Regenerate", attribute.String("period", req.Period.String()))
	defer func() { endSpan(span, err) }()

	runID := newRunID()
	actor := s.actor(req.Actor)

	var removed []cuotadomain.Cuota
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cuotas, err := s.repo.List(ctx, tx, cuotadomain.ListFilter{Period: &req.Period, Selection: req.Selection})
		if err != nil {
			return err
		}
		if lo.ContainsBy(cuotas, func(c cuotadomain.Cuota) bool { return c.IsPaid() }) {
			return cuotadomain.ErrPaidInSelection
		}

		for i := range cuotas {
			if cuotas[i].Items, err = s.repo.ListItems(ctx, tx, cuotas[i].ID); err != nil {
				return err
			}
		}
		ids := lo.Map(cuotas, func(c cuotadomain.Cuota, _ int) snowflake.ID { return c.ID })
		if err := s.repo.DeleteItems(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, ids); err != nil {
			return err
		}
		for i := range cuotas {
			_, err := s.audit.Record(ctx, tx, auditdomain.RecordRequest{
				Action:     auditdomain.ActionCuotaRegenerate,
				TargetType: auditdomain.TargetCuota,
				TargetID:   cuotas[i].ID.String(),
				Before:     &cuotas[i],
				Actor:      actor,
				Reason:     req.Reason,
				Metadata:   map[string]any{"run_id": runID, "period": req.Period.String()},
			})
			if err != nil {
				return err
			}
		}
		removed = cuotas
		return nil
	})
	if err != nil {
		return nil, err
	}
	deleted := len(removed)

	persons, err := s.regenerationTargets(ctx, req.Selection, removed)
	if err != nil {
		return nil, err
	}
	generation, err := s.generateFor(ctx, persons, req.Period, req.Actor, runID)
	if err != nil {
		return nil, err
	}

	s.log.Info("cuotas regenerated",
		zap.String("run_id", runID),
		zap.String("period", req.Period.String()),
		zap.Int("deleted", deleted),
	)
	return &cuotadomain.RegenerationResult{
		RunID:      runID,
		Deleted:    deleted,
		Generation: generation,
	}, nil
}

// regenerationTargets returns the active members matching the selection
// plus every member whose cuota was just removed, even if their category
// has changed since the cuota was billed.
func (s *Service) regenerationTargets(ctx context.Context, sel cuotadomain.Selection, removed []cuotadomain.Cuota) ([]memberdomain.Person, error) {
	persons, err := s.directory.ListActivePersons(ctx, memberdomain.PersonFilter{
		PersonIDs:   sel.PersonIDs,
		CategoryIDs: sel.CategoryIDs,
	})
	if err != nil {
		return nil, err
	}

	listed := lo.SliceToMap(persons, func(m memberdomain.Person) (snowflake.ID, struct{}) { return m.ID, struct{}{} })
	missing := lo.Uniq(lo.FilterMap(removed, func(c cuotadomain.Cuota, _ int) (snowflake.ID, bool) {
		_, ok := listed[c.PersonID]
		return c.PersonID, !ok
	}))
	if len(missing) == 0 {
		return persons, nil
	}

	moved, err := s.directory.ListActivePersons(ctx, memberdomain.PersonFilter{PersonIDs: missing})
	if err != nil {
		return nil, err
	}
	return append(persons, moved...), nil
}

func (s *Service) MarkPaid(ctx context.Context, req cuotadomain.MarkPaidRequest) (*cuotadomain.Cuota, error) {
	if req.ID == 0 {
		return nil, cuotadomain.ErrInvalidID
	}

	var updated *cuotadomain.Cuota
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return cuotadomain.ErrNotFound
		}
		if current.IsPaid() {
			return cuotadomain.ErrAlreadyPaid
		}

		now := s.clock.Now()
		next := *current
		next.Status = cuotadomain.StatusPaid
		next.PaidAt = &now
		next.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, tx, &next); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     auditdomain.ActionCuotaPay,
			TargetType: auditdomain.TargetCuota,
			TargetID:   next.ID.String(),
			Before:     current,
			After:      &next,
			Actor:      s.actor(req.Actor),
		})
		if err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*cuotadomain.Cuota, error) {
	if id == 0 {
		return nil, cuotadomain.ErrInvalidID
	}
	return s.find(ctx, id)
}

func (s *Service) List(ctx context.Context, filter cuotadomain.ListFilter) ([]cuotadomain.Cuota, error) {
	if filter.Period != nil && !filter.Period.Valid() {
		return nil, cuotadomain.ErrInvalidPeriod
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*cuotadomain.Cuota, error) {
	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, cuotadomain.ErrNotFound
	}
	return current, nil
}

func (s *Service) lineItems(cuotaID snowflake.ID, breakdown pricingdomain.Breakdown) []cuotadomain.LineItem {
	now := s.clock.Now()
	items := make([]cuotadomain.LineItem, 0, len(breakdown.Lines))
	for i, line := range breakdown.Lines {
		item := cuotadomain.LineItem{
			ID:        s.genID.Generate(),
			CuotaID:   cuotaID,
			Position:  i,
			Kind:      string(line.Kind),
			Concept:   line.Concept,
			Amount:    line.Amount,
			Automatic: line.Automatic,
			CreatedAt: now,
		}
		if len(line.Provenance) > 0 {
			item.Provenance = datatypes.JSONMap(line.Provenance)
		}
		items = append(items, item)
	}
	return items
}

func (s *Service) significant(delta decimal.Decimal) bool {
	return delta.Abs().GreaterThan(s.pricing.Get().Threshold())
}

func (s *Service) batchError(ctx context.Context, personID snowflake.ID, cuotaID *snowflake.ID, stage string, err error) cuotadomain.BatchError {
	s.metrics.RecordBatchFailure(ctx, stage)
	fields := []zap.Field{
		zap.String("person_id", personID.String()),
		zap.String("stage", stage),
		zap.Error(err),
	}
	if cuotaID != nil {
		fields = append(fields, zap.String("cuota_id", cuotaID.String()))
	}
	s.log.Warn("batch item failed", fields...)

	return cuotadomain.BatchError{
		PersonID: personID,
		CuotaID:  cuotaID,
		Stage:    stage,
		Message:  err.Error(),
		Err:      err,
	}
}

func (s *Service) actor(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return s.pricing.Get().DefaultActor
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(tracing.SafeAttributes(attrs...)...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, ierr.Code(err))
	}
	span.End()
}

func subjectOf(c *cuotadomain.Cuota) pricingdomain.Subject {
	return pricingdomain.Subject{
		PersonID:   c.PersonID,
		CategoryID: c.CategoryID,
		Period:     c.Period(),
	}
}

// deltaPercent is delta relative to the stored total. A zero stored total
// reports 100 for any movement.
func deltaPercent(stored, delta decimal.Decimal) decimal.Decimal {
	if delta.IsZero() {
		return decimal.Zero
	}
	if stored.IsZero() {
		return hundred
	}
	return delta.Div(stored).Mul(hundred).Round(2)
}

func newRunID() string {
	return ulid.Make().String()
}
