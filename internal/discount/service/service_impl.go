package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
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
	Repo    discountdomain.Repository
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingConfigHolder
	repo    discountdomain.Repository
	audit   auditdomain.Service
}

func NewService(p Params) discountdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("discount.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
		audit:   p.Audit,
	}
}

func (s *Service) CreateRule(ctx context.Context, req discountdomain.CreateRuleRequest) (*discountdomain.Rule, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRuleInput(req.RuleInput); err != nil {
		return nil, err
	}

	conditions, formula, err := encodeRuleInput(req.RuleInput)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rule := &discountdomain.Rule{
		ID:        s.genID.Generate(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyRuleInput(rule, req.RuleInput, conditions, formula)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindRuleByCode(ctx, tx, rule.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			return discountdomain.ErrDuplicateCode
		}
		if err := s.repo.InsertRule(ctx, tx, rule); err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     auditdomain.ActionRuleCreate,
			TargetType: auditdomain.TargetDiscountRule,
			TargetID:   rule.ID.String(),
			After:      rule,
			Actor:      req.Actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("discount rule created", zap.String("rule_id", rule.ID.String()), zap.String("rule_code", rule.Code))
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, req discountdomain.UpdateRuleRequest) (*discountdomain.Rule, error) {
	if req.ID == 0 {
		return nil, discountdomain.ErrInvalidID
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRuleInput(req.RuleInput); err != nil {
		return nil, err
	}

	conditions, formula, err := encodeRuleInput(req.RuleInput)
	if err != nil {
		return nil, err
	}

	var updated *discountdomain.Rule
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindRule(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return discountdomain.ErrRuleNotFound
		}
		if current.Code != req.Code {
			clash, err := s.repo.FindRuleByCode(ctx, tx, req.Code)
			if err != nil {
				return err
			}
			if clash != nil {
				return discountdomain.ErrDuplicateCode
			}
		}

		before := *current
		next := *current
		applyRuleInput(&next, req.RuleInput, conditions, formula)
		next.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateRule(ctx, tx, &next); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     auditdomain.ActionRuleUpdate,
			TargetType: auditdomain.TargetDiscountRule,
			TargetID:   next.ID.String(),
			Before:     before,
			After:      next,
			Actor:      req.Actor,
		}); err != nil {
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

func (s *Service) SetRuleActive(ctx context.Context, req discountdomain.SetRuleActiveRequest) (*discountdomain.Rule, error) {
	if req.ID == 0 {
		return nil, discountdomain.ErrInvalidID
	}

	var updated *discountdomain.Rule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindRule(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return discountdomain.ErrRuleNotFound
		}
		if current.Active == req.Active {
			updated = current
			return nil
		}

		before := *current
		next := *current
		next.Active = req.Active
		next.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateRule(ctx, tx, &next); err != nil {
			return err
		}

		action := auditdomain.ActionRuleDeactivate
		if req.Active {
			action = auditdomain.ActionRuleActivate
		}
		if _, err := s.audit.Record(ctx, tx, auditdomain.RecordRequest{
			Action:     action,
			TargetType: auditdomain.TargetDiscountRule,
			TargetID:   next.ID.String(),
			Before:     before,
			After:      next,
			Actor:      req.Actor,
		}); err != nil {
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

func (s *Service) GetRule(ctx context.Context, id snowflake.ID) (*discountdomain.Rule, error) {
	if id == 0 {
		return nil, discountdomain.ErrInvalidID
	}
	rule, err := s.repo.FindRule(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, discountdomain.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, req discountdomain.ListRulesRequest) ([]discountdomain.Rule, error) {
	rules, err := s.repo.ListRules(ctx, s.db, req.ActiveOnly)
	if err != nil {
		return nil, err
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return OrderRules(rules, cfg.RulePriorityOrder), nil
}

// GetConfig falls back to an active config capped at the configured default
// when the config row has never been written.
func (s *Service) GetConfig(ctx context.Context) (*discountdomain.GlobalConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	pricing := s.pricing.Get()
	return &discountdomain.GlobalConfig{
		ID:               discountdomain.GlobalConfigID,
		Active:           true,
		GlobalCapPercent: pricing.DefaultCap(),
		UpdatedBy:        pricing.DefaultActor,
	}, nil
}

func (s *Service) UpdateConfig(ctx context.Context, req discountdomain.UpdateConfigRequest) (*discountdomain.GlobalConfig, error) {
	next := &discountdomain.GlobalConfig{
		ID:                discountdomain.GlobalConfigID,
		Active:            req.Active,
		GlobalCapPercent:  req.GlobalCapPercent,
		RulePriorityOrder: datatypes.JSONSlice[string](normalizeCodes(req.RulePriorityOrder)),
		UpdatedBy:         actorOrDefault(req.Actor, s.pricing.Get().DefaultActor),
		UpdatedAt:         s.clock.Now(),
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.GetConfig(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.repo.SaveConfig(ctx, tx, next); err != nil {
			return err
		}
		record := auditdomain.RecordRequest{
			Action:     auditdomain.ActionConfigUpdate,
			TargetType: auditdomain.TargetDiscountConfig,
			TargetID:   "global",
			After:      next,
			Actor:      next.UpdatedBy,
		}
		if before != nil {
			record.Before = before
		}
		_, err = s.audit.Record(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) LoadRuleSet(ctx context.Context) (discountdomain.RuleSet, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return discountdomain.RuleSet{}, err
	}
	rules, err := s.repo.ListRules(ctx, s.db, true)
	if err != nil {
		return discountdomain.RuleSet{}, err
	}
	return discountdomain.RuleSet{Rules: rules, Config: *cfg}, nil
}

func validateRuleInput(in discountdomain.RuleInput) error {
	if err := validator.ValidateRequest(in); err != nil {
		return err
	}
	if in.Code == "" {
		return discountdomain.ErrInvalidCode
	}
	if in.Name == "" {
		return discountdomain.ErrInvalidName
	}
	if !in.ApplicationMode.Valid() {
		return discountdomain.ErrInvalidApplicationMode
	}
	if !in.CustomResolution.Valid() {
		return discountdomain.ErrInvalidCustomResolution
	}
	if in.CustomResolution != "" && in.ApplicationMode != discountdomain.ModeCustom {
		return discountdomain.ErrInvalidCustomResolution
	}
	if in.MaxDiscountPercent != nil && !discountdomain.PercentInRange(*in.MaxDiscountPercent) {
		return discountdomain.ErrInvalidPercent
	}
	if !in.AppliesToBase && !in.AppliesToActivities {
		return discountdomain.ErrInvalidScope
	}
	for _, cond := range in.Conditions {
		if err := discountdomain.ValidateCondition(cond); err != nil {
			return err
		}
	}
	if in.Formula == nil {
		return discountdomain.ErrInvalidFormula
	}
	return discountdomain.ValidateFormula(in.Formula)
}

func encodeRuleInput(in discountdomain.RuleInput) (datatypes.JSON, datatypes.JSON, error) {
	conditions, err := discountdomain.EncodeConditions(in.Conditions)
	if err != nil {
		return nil, nil, err
	}
	formula, err := discountdomain.EncodeFormula(in.Formula)
	if err != nil {
		return nil, nil, err
	}
	return conditions, formula, nil
}

func applyRuleInput(rule *discountdomain.Rule, in discountdomain.RuleInput, conditions, formula datatypes.JSON) {
	rule.Code = in.Code
	rule.Name = in.Name
	rule.Description = in.Description
	rule.Active = in.Active
	rule.Priority = in.Priority
	rule.Conditions = conditions
	rule.Formula = formula
	rule.ApplicationMode = in.ApplicationMode
	rule.CustomResolution = in.CustomResolution
	rule.MaxDiscountPercent = decimal.NullDecimal{}
	if in.MaxDiscountPercent != nil {
		rule.MaxDiscountPercent = decimal.NewNullDecimal(*in.MaxDiscountPercent)
	}
	rule.AppliesToBase = in.AppliesToBase
	rule.AppliesToActivities = in.AppliesToActivities
}

func normalizeCodes(codes []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(codes, func(code string, _ int) string {
		return strings.TrimSpace(code)
	})))
}

func actorOrDefault(actor, def string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return def
}

