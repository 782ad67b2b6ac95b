package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/pkg/db/option"
	"github.com/smallbiznis/cuotas/pkg/repository"
	"gorm.io/gorm"
)

// Repository serves every read-side member collaborator from one connection.
type Repository struct {
	db         *gorm.DB
	persons    repository.Reader[memberdomain.Person]
	categories repository.Reader[memberdomain.Category]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		persons:    repository.NewReader[memberdomain.Person](db),
		categories: repository.NewReader[memberdomain.Category](db),
	}
}

func (r *Repository) FindPerson(ctx context.Context, id snowflake.ID) (*memberdomain.Person, error) {
	return r.persons.Get(ctx, &memberdomain.Person{ID: id}, memberdomain.ErrPersonNotFound)
}

func (r *Repository) ListActivePersons(ctx context.Context, filter memberdomain.PersonFilter) ([]memberdomain.Person, error) {
	opts := []option.QueryOption{
		option.WithWhere("active = ?", true),
		option.WithOrder("id asc"),
	}
	if len(filter.PersonIDs) > 0 {
		opts = append(opts, option.WithWhere("id IN ?", filter.PersonIDs))
	}
	if len(filter.CategoryIDs) > 0 {
		opts = append(opts, option.WithWhere("category_id IN ?", filter.CategoryIDs))
	}

	return r.persons.List(ctx, nil, opts...)
}

func (r *Repository) GetCategory(ctx context.Context, categoryID snowflake.ID) (*memberdomain.Category, error) {
	return r.categories.Get(ctx, &memberdomain.Category{ID: categoryID}, memberdomain.ErrCategoryNotFound)
}

func (r *Repository) GetBasePrice(ctx context.Context, categoryID snowflake.ID) (decimal.Decimal, error) {
	category, err := r.GetCategory(ctx, categoryID)
	if err != nil {
		return decimal.Zero, err
	}
	return category.BasePrice, nil
}

func (r *Repository) GetDiscountPercent(ctx context.Context, categoryID snowflake.ID) (decimal.Decimal, error) {
	category, err := r.GetCategory(ctx, categoryID)
	if err != nil {
		return decimal.Zero, err
	}
	return category.DiscountPercent, nil
}

func (r *Repository) CountLinks(ctx context.Context, personID snowflake.ID) (int, error) {
	return r.countLinks(ctx, personID, false)
}

func (r *Repository) CountActiveLinks(ctx context.Context, personID snowflake.ID) (int, error) {
	return r.countLinks(ctx, personID, true)
}

func (r *Repository) countLinks(ctx context.Context, personID snowflake.ID, requireActiveLink bool) (int, error) {
	var count int64
	stmt := r.db.WithContext(ctx).
		Table("family_links AS fl").
		Joins("JOIN persons AS p ON p.id = fl.related_person_id").
		Where("fl.person_id = ? AND p.active = ?", personID, true)
	if requireActiveLink {
		stmt = stmt.Where("fl.active = ?", true)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) MaxLinkDiscount(ctx context.Context, personID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		MaxDiscount decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT MAX(fl.discount_percent) AS max_discount
		 FROM family_links fl
		 JOIN persons p ON p.id = fl.related_person_id
		 WHERE fl.person_id = ? AND fl.active = ? AND p.active = ?`,
		personID, true, true,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.MaxDiscount.Valid {
		return decimal.Zero, nil
	}
	return row.MaxDiscount.Decimal, nil
}

func (r *Repository) CountActive(ctx context.Context, personID snowflake.ID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("activity_participations AS ap").
		Joins("JOIN activities AS a ON a.id = ap.activity_id").
		Where("ap.person_id = ? AND ap.active = ? AND a.active = ?", personID, true, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) SumCost(ctx context.Context, personID snowflake.ID, p period.Period) (decimal.Decimal, error) {
	var rows []struct {
		MonthlyCost decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("activity_participations AS ap").
		Select("a.monthly_cost AS monthly_cost").
		Joins("JOIN activities AS a ON a.id = ap.activity_id").
		Where("ap.person_id = ? AND ap.active = ? AND a.active = ?", personID, true, true).
		Where("ap.start_date < ?", p.End()).
		Where("(ap.end_date IS NULL OR ap.end_date >= ?)", p.Start()).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.MonthlyCost)
	}
	return total, nil
}

func (r *Repository) MembershipStartDate(ctx context.Context, personID snowflake.ID) (*time.Time, error) {
	person, err := r.FindPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if person.MembershipStart == nil {
		return nil, nil
	}
	start := person.MembershipStart.UTC()
	return &start, nil
}
