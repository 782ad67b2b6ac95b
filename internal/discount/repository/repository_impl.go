package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() discountdomain.Repository {
	return &repo{}
}

const ruleColumns = `id, code, name, description, active, priority, conditions, formula,
	application_mode, custom_resolution, max_discount_percent, applies_to_base,
	applies_to_activities, created_at, updated_at`

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *discountdomain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) UpdateRule(ctx context.Context, db *gorm.DB, rule *discountdomain.Rule) error {
	return db.WithContext(ctx).Save(rule).Error
}

func (r *repo) FindRule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*discountdomain.Rule, error) {
	var rule discountdomain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM discount_rules WHERE id = ?`,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) FindRuleByCode(ctx context.Context, db *gorm.DB, code string) (*discountdomain.Rule, error) {
	var rule discountdomain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM discount_rules WHERE code = ?`,
		code,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB, activeOnly bool) ([]discountdomain.Rule, error) {
	var rules []discountdomain.Rule
	stmt := db.WithContext(ctx).Model(&discountdomain.Rule{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("priority asc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) GetConfig(ctx context.Context, db *gorm.DB) (*discountdomain.GlobalConfig, error) {
	var cfg discountdomain.GlobalConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, active, global_cap_percent, rule_priority_order, updated_by, updated_at
		 FROM discount_config WHERE id = ?`,
		discountdomain.GlobalConfigID,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) SaveConfig(ctx context.Context, db *gorm.DB, cfg *discountdomain.GlobalConfig) error {
	cfg.ID = discountdomain.GlobalConfigID
	return db.WithContext(ctx).Save(cfg).Error
}
