package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service manages discount rules and the global discount config.
type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	UpdateRule(ctx context.Context, req UpdateRuleRequest) (*Rule, error)
	SetRuleActive(ctx context.Context, req SetRuleActiveRequest) (*Rule, error)
	GetRule(ctx context.Context, id snowflake.ID) (*Rule, error)
	// ListRules returns rules in effective evaluation order.
	ListRules(ctx context.Context, req ListRulesRequest) ([]Rule, error)

	GetConfig(ctx context.Context) (*GlobalConfig, error)
	UpdateConfig(ctx context.Context, req UpdateConfigRequest) (*GlobalConfig, error)

	// LoadRuleSet reads the active rules and the config for one pricing run.
	LoadRuleSet(ctx context.Context) (RuleSet, error)
}

// RuleSet is the rule engine input read fresh for every run.
type RuleSet struct {
	Rules  []Rule
	Config GlobalConfig
}

type RuleInput struct {
	Code                string           `json:"code" validate:"required,max=64"`
	Name                string           `json:"name" validate:"required,max=200"`
	Description         *string          `json:"description,omitempty"`
	Priority            int              `json:"priority"`
	Conditions          []Condition      `json:"-"`
	Formula             Formula          `json:"-"`
	ApplicationMode     ApplicationMode  `json:"application_mode" validate:"required,oneof=cumulative exclusive capped custom"`
	CustomResolution    CustomResolution `json:"custom_resolution,omitempty"`
	MaxDiscountPercent  *decimal.Decimal `json:"max_discount_percent,omitempty"`
	AppliesToBase       bool             `json:"applies_to_base"`
	AppliesToActivities bool             `json:"applies_to_activities"`
	Active              bool             `json:"active"`
}

type CreateRuleRequest struct {
	RuleInput
	Actor string
}

type UpdateRuleRequest struct {
	ID snowflake.ID
	RuleInput
	Actor string
}

type SetRuleActiveRequest struct {
	ID     snowflake.ID
	Active bool
	Actor  string
}

type ListRulesRequest struct {
	ActiveOnly bool
}

type UpdateConfigRequest struct {
	Active            bool            `json:"active"`
	GlobalCapPercent  decimal.Decimal `json:"global_cap_percent"`
	RulePriorityOrder []string        `json:"rule_priority_order"`
	Actor             string          `json:"-"`
}
