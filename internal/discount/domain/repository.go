package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	UpdateRule(ctx context.Context, db *gorm.DB, rule *Rule) error
	FindRule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	FindRuleByCode(ctx context.Context, db *gorm.DB, code string) (*Rule, error)
	ListRules(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Rule, error)

	// GetConfig returns nil when the config row has never been written.
	GetConfig(ctx context.Context, db *gorm.DB) (*GlobalConfig, error)
	SaveConfig(ctx context.Context, db *gorm.DB, cfg *GlobalConfig) error
}
