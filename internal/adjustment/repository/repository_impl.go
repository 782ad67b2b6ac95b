package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() adjustmentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, adj *adjustmentdomain.Adjustment) error {
	return db.WithContext(ctx).Create(adj).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, adj *adjustmentdomain.Adjustment) error {
	return db.WithContext(ctx).Save(adj).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM adjustments WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*adjustmentdomain.Adjustment, error) {
	var adj adjustmentdomain.Adjustment
	err := db.WithContext(ctx).Raw(
		`SELECT id, person_id, kind, value, scope, item_codes, start_date, end_date,
		 status, reason, created_by, created_at, updated_at
		 FROM adjustments WHERE id = ?`,
		id,
	).Scan(&adj).Error
	if err != nil {
		return nil, err
	}
	if adj.ID == 0 {
		return nil, nil
	}
	return &adj, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter adjustmentdomain.ListFilter) ([]adjustmentdomain.Adjustment, error) {
	var items []adjustmentdomain.Adjustment
	stmt := db.WithContext(ctx).Model(&adjustmentdomain.Adjustment{})
	if filter.PersonID != 0 {
		stmt = stmt.Where("person_id = ?", filter.PersonID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("created_at asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ActiveForPeriod(ctx context.Context, db *gorm.DB, personID snowflake.ID, p period.Period) ([]adjustmentdomain.Adjustment, error) {
	var items []adjustmentdomain.Adjustment
	err := db.WithContext(ctx).
		Where("person_id = ?", personID).
		Where("status = ?", adjustmentdomain.StatusActive).
		Where("start_date < ?", p.End()).
		Where("(end_date IS NULL OR end_date >= ?)", p.Start()).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
