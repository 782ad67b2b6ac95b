package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingConfigHolder
	Repo    exemptiondomain.Repository
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingConfigHolder
	repo    exemptiondomain.Repository
	audit   auditdomain.Service
}

func NewService(p Params) exemptiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("exemption.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
		audit:   p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req exemptiondomain.CreateRequest) (*exemptiondomain.Exemption, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, exemptiondomain.ErrInvalidReason
	}

	now := s.clock.Now()
	ex := &exemptiondomain.Exemption{
		ID:          s.genID.Generate(),
		PersonID:    req.PersonID,
		Kind:        req.Kind,
		Percent:     req.Percent,
		StartDate:   req.StartDate.UTC(),
		EndDate:     utcPtr(req.EndDate),
		Status:      exemptiondomain.StatusPending,
		Reason:      reason,
		RequestedBy: s.actor(req.Actor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ex.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, ex); err != nil {
			return err
		}
		return s.record(ctx, tx, auditdomain.ActionExemptionCreate, nil, ex, req.Actor, reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("exemption requested",
		zap.String("exemption_id", ex.ID.String()),
		zap.String("person_id", ex.PersonID.String()),
		zap.String("percent", ex.Percent.String()),
	)
	return ex, nil
}

func (s *Service) Update(ctx context.Context, req exemptiondomain.UpdateRequest) (*exemptiondomain.Exemption, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, req.ID, auditdomain.ActionExemptionUpdate, req.Actor, "", func(ex *exemptiondomain.Exemption) error {
		if ex.Status != exemptiondomain.StatusPending {
			return exemptiondomain.ErrNotEditable
		}
		if req.Kind != nil {
			ex.Kind = *req.Kind
		}
		if req.Percent != nil {
			ex.Percent = *req.Percent
		}
		if req.StartDate != nil {
			ex.StartDate = req.StartDate.UTC()
		}
		if req.EndDate != nil {
			ex.EndDate = utcPtr(req.EndDate)
		}
		if req.Reason != nil {
			reason := strings.TrimSpace(*req.Reason)
			if reason == "" {
				return exemptiondomain.ErrInvalidReason
			}
			ex.Reason = reason
		}
		return ex.Validate()
	})
}

func (s *Service) Approve(ctx context.Context, req exemptiondomain.TransitionRequest) (*exemptiondomain.Exemption, error) {
	return s.decide(ctx, req, exemptiondomain.StatusApproved, auditdomain.ActionExemptionApprove)
}

func (s *Service) Reject(ctx context.Context, req exemptiondomain.TransitionRequest) (*exemptiondomain.Exemption, error) {
	return s.decide(ctx, req, exemptiondomain.StatusRejected, auditdomain.ActionExemptionReject)
}

func (s *Service) Revoke(ctx context.Context, req exemptiondomain.TransitionRequest) (*exemptiondomain.Exemption, error) {
	return s.decide(ctx, req, exemptiondomain.StatusRevoked, auditdomain.ActionExemptionRevoke)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*exemptiondomain.Exemption, error) {
	if id == 0 {
		return nil, exemptiondomain.ErrInvalidID
	}
	ex, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, exemptiondomain.ErrNotFound
	}
	return ex, nil
}

func (s *Service) List(ctx context.Context, filter exemptiondomain.ListFilter) ([]exemptiondomain.Exemption, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) ActiveForPeriod(ctx context.Context, personID snowflake.ID, p period.Period) (*exemptiondomain.Exemption, error) {
	return s.repo.ActiveForPeriod(ctx, s.db, personID, p)
}

func (s *Service) decide(ctx context.Context, req exemptiondomain.TransitionRequest, next exemptiondomain.Status, action string) (*exemptiondomain.Exemption, error) {
	return s.mutate(ctx, req.ID, action, req.Actor, req.Reason, func(ex *exemptiondomain.Exemption) error {
		if !ex.Status.CanTransitionTo(next) {
			return exemptiondomain.ErrInvalidTransition
		}
		now := s.clock.Now()
		actor := s.actor(req.Actor)
		ex.Status = next
		ex.DecidedBy = &actor
		ex.DecidedAt = &now
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id snowflake.ID, action, actor, reason string, apply func(*exemptiondomain.Exemption) error) (*exemptiondomain.Exemption, error) {
	if id == 0 {
		return nil, exemptiondomain.ErrInvalidID
	}

	var updated *exemptiondomain.Exemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return exemptiondomain.ErrNotFound
		}

		before := *current
		next := *current
		if err := apply(&next); err != nil {
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

	s.log.Info("exemption changed",
		zap.String("exemption_id", updated.ID.String()),
		zap.String("action", action),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, before, after *exemptiondomain.Exemption, actor, reason string) error {
	req := auditdomain.RecordRequest{
		Action:     action,
		TargetType: auditdomain.TargetExemption,
		TargetID:   after.ID.String(),
		After:      after,
		Actor:      actor,
		Reason:     reason,
		Metadata:   map[string]any{"person_id": after.PersonID.String()},
	}
	if before != nil {
		req.Before = before
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

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
