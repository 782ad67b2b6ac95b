package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() exemptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ex *exemptiondomain.Exemption) error {
	return db.WithContext(ctx).Create(ex).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, ex *exemptiondomain.Exemption) error {
	return db.WithContext(ctx).Save(ex).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*exemptiondomain.Exemption, error) {
	var ex exemptiondomain.Exemption
	err := db.WithContext(ctx).Where("id = ?", id).First(&ex).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter exemptiondomain.ListFilter) ([]exemptiondomain.Exemption, error) {
	var items []exemptiondomain.Exemption
	stmt := db.WithContext(ctx).Model(&exemptiondomain.Exemption{})
	if filter.PersonID != 0 {
		stmt = stmt.Where("person_id = ?", filter.PersonID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ActiveForPeriod(ctx context.Context, db *gorm.DB, personID snowflake.ID, p period.Period) (*exemptiondomain.Exemption, error) {
	var ex exemptiondomain.Exemption
	err := db.WithContext(ctx).
		Where("person_id = ?", personID).
		Where("status = ?", exemptiondomain.StatusApproved).
		Where("start_date < ?", p.End()).
		Where("(end_date IS NULL OR end_date >= ?)", p.Start()).
		Order("percent desc, created_at asc, id asc").
		First(&ex).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
