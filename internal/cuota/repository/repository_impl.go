package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() cuotadomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cuota *cuotadomain.Cuota) error {
	return db.WithContext(ctx).Create(cuota).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []cuotadomain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) UpdateAmounts(ctx context.Context, db *gorm.DB, cuota *cuotadomain.Cuota) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cuotas
		 SET base_amount = ?, activities_amount = ?, total_amount = ?, run_id = ?, updated_at = ?
		 WHERE id = ?`,
		cuota.BaseAmount,
		cuota.ActivitiesAmount,
		cuota.TotalAmount,
		cuota.RunID,
		cuota.UpdatedAt,
		cuota.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, cuota *cuotadomain.Cuota) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cuotas SET status = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		cuota.Status,
		cuota.PaidAt,
		cuota.UpdatedAt,
		cuota.ID,
	).Error
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, cuotaIDs []snowflake.ID) error {
	if len(cuotaIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(`DELETE FROM cuota_line_items WHERE cuota_id IN ?`, cuotaIDs).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(`DELETE FROM cuotas WHERE id IN ?`, ids).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*cuotadomain.Cuota, error) {
	var cuota cuotadomain.Cuota
	err := db.WithContext(ctx).Raw(
		`SELECT id, person_id, category_id, year, month, base_amount, activities_amount,
		 total_amount, status, paid_at, run_id, created_at, updated_at
		 FROM cuotas WHERE id = ?`,
		id,
	).Scan(&cuota).Error
	if err != nil {
		return nil, err
	}
	if cuota.ID == 0 {
		return nil, nil
	}

	items, err := r.ListItems(ctx, db, cuota.ID)
	if err != nil {
		return nil, err
	}
	cuota.Items = items
	return &cuota, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter cuotadomain.ListFilter) ([]cuotadomain.Cuota, error) {
	var items []cuotadomain.Cuota
	stmt := db.WithContext(ctx).Model(&cuotadomain.Cuota{})
	if filter.Period != nil {
		stmt = stmt.Where("year = ? AND month = ?", filter.Period.Year, int(filter.Period.Month))
	}
	if len(filter.Selection.PersonIDs) > 0 {
		stmt = stmt.Where("person_id IN ?", filter.Selection.PersonIDs)
	}
	if len(filter.Selection.CategoryIDs) > 0 {
		stmt = stmt.Where("category_id IN ?", filter.Selection.CategoryIDs)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("year asc, month asc, person_id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, cuotaID snowflake.ID) ([]cuotadomain.LineItem, error) {
	var items []cuotadomain.LineItem
	err := db.WithContext(ctx).
		Where("cuota_id = ?", cuotaID).
		Order("position asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

