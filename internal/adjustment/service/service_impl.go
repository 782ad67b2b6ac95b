package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingConfigHolder
	Repo    adjustmentdomain.Repository
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingConfigHolder
	repo    adjustmentdomain.Repository
	audit   auditdomain.Service
}

func NewService(p Params) adjustmentdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("adjustment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
		audit:   p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req adjustmentdomain.CreateRequest) (*adjustmentdomain.Adjustment, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	scope := req.Scope
	if scope == "" {
		scope = adjustmentdomain.ScopeAllItems
	}
	adj := &adjustmentdomain.Adjustment{
		ID:        s.genID.Generate(),
		PersonID:  req.PersonID,
		Kind:      req.Kind,
		Value:     req.Value,
		Scope:     scope,
		StartDate: req.StartDate.UTC(),
		EndDate:   utcPtr(req.EndDate),
		Status:    adjustmentdomain.StatusActive,
		Reason:    optionalString(req.Reason),
		CreatedBy: s.actor(req.Actor),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(req.ItemCodes) > 0 {
		adj.ItemCodes = datatypes.JSONSlice[string](req.ItemCodes)
	}
	if err := adj.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, adj); err != nil {
			return err
		}
		return s.record(ctx, tx, auditdomain.ActionAdjustmentCreate, nil, adj, req.Actor, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("adjustment created",
		zap.String("adjustment_id", adj.ID.String()),
		zap.String("person_id", adj.PersonID.String()),
		zap.String("kind", string(adj.Kind)),
	)
	return adj, nil
}

func (s *Service) Update(ctx context.Context, req adjustmentdomain.UpdateRequest) (*adjustmentdomain.Adjustment, error) {
	if req.ID == 0 {
		return nil, adjustmentdomain.ErrInvalidID
	}
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, req.ID, auditdomain.ActionAdjustmentUpdate, req.Actor, req.Reason, func(adj *adjustmentdomain.Adjustment) error {
		if adj.Status != adjustmentdomain.StatusActive {
			return adjustmentdomain.ErrNotEditable
		}
		if req.Value != nil {
			adj.Value = *req.Value
		}
		if req.Scope != nil {
			adj.Scope = *req.Scope
		}
		if req.ItemCodes != nil {
			adj.ItemCodes = datatypes.JSONSlice[string](req.ItemCodes)
		}
		if req.StartDate != nil {
			adj.StartDate = req.StartDate.UTC()
		}
		if req.EndDate != nil {
			adj.EndDate = utcPtr(req.EndDate)
		}
		return adj.Validate()
	})
}

func (s *Service) Deactivate(ctx context.Context, req adjustmentdomain.TransitionRequest) (*adjustmentdomain.Adjustment, error) {
	return s.transition(ctx, req.ID, auditdomain.ActionAdjustmentDeactivate, req.Actor, req.Reason, func(adj *adjustmentdomain.Adjustment) error {
		if adj.Status != adjustmentdomain.StatusActive {
			return adjustmentdomain.ErrNotEditable
		}
		adj.Status = adjustmentdomain.StatusInactive
		return nil
	})
}

func (s *Service) Reactivate(ctx context.Context, req adjustmentdomain.TransitionRequest) (*adjustmentdomain.Adjustment, error) {
	return s.transition(ctx, req.ID, auditdomain.ActionAdjustmentReactivate, req.Actor, req.Reason, func(adj *adjustmentdomain.Adjustment) error {
		if adj.Status != adjustmentdomain.StatusInactive {
			return adjustmentdomain.ErrNotInactive
		}
		adj.Status = adjustmentdomain.StatusActive
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, req adjustmentdomain.TransitionRequest) error {
	if req.ID == 0 {
		return adjustmentdomain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return adjustmentdomain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, req.ID); err != nil {
			return err
		}
		return s.record(ctx, tx, auditdomain.ActionAdjustmentDelete, current, nil, req.Actor, req.Reason)
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*adjustmentdomain.Adjustment, error) {
	if id == 0 {
		return nil, adjustmentdomain.ErrInvalidID
	}
	adj, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if adj == nil {
		return nil, adjustmentdomain.ErrNotFound
	}
	return adj, nil
}

func (s *Service) List(ctx context.Context, filter adjustmentdomain.ListFilter) ([]adjustmentdomain.Adjustment, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) ActiveForPeriod(ctx context.Context, personID snowflake.ID, p period.Period) ([]adjustmentdomain.Adjustment, error) {
	return s.repo.ActiveForPeriod(ctx, s.db, personID, p)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, action, actor, reason string, mutate func(*adjustmentdomain.Adjustment) error) (*adjustmentdomain.Adjustment, error) {
	if id == 0 {
		return nil, adjustmentdomain.ErrInvalidID
	}

	var updated *adjustmentdomain.Adjustment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return adjustmentdomain.ErrNotFound
		}

		before := *current
		next := *current
		if err := mutate(&next); err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		if err := s.record(ctx, tx, action, &before, &next, actor, reason); err != nil {
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

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, before, after *adjustmentdomain.Adjustment, actor, reason string) error {
	target := after
	if target == nil {
		target = before
	}
	req := auditdomain.RecordRequest{
		Action:     action,
		TargetType: auditdomain.TargetAdjustment,
		TargetID:   target.ID.String(),
		Actor:      actor,
		Reason:     reason,
		Metadata:   map[string]any{"person_id": target.PersonID.String()},
	}
	if before != nil {
		req.Before = before
	}
	if after != nil {
		req.After = after
	}
	_, err := s.audit.Record(ctx, tx, req)
	return err
}

func (s *Service) actor(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return s.pricing.Get().DefaultActor
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
