package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/cuotas/pkg/db/option"
	"gorm.io/gorm"
)

// Reader is a generic read-only gorm view over one table. Zero fields in
// the query struct are ignored by gorm, so callers narrow with options.
type Reader[T any] interface {
	WithTrx(tx *gorm.DB) Reader[T]
	List(ctx context.Context, query *T, opts ...option.QueryOption) ([]T, error)
	Get(ctx context.Context, query *T, notFound error) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}

type reader[T any] struct {
	db *gorm.DB
}

func NewReader[T any](db *gorm.DB) Reader[T] {
	return &reader[T]{db: db}
}

func (r *reader[T]) WithTrx(tx *gorm.DB) Reader[T] {
	return &reader[T]{db: tx}
}

func (r *reader[T]) List(ctx context.Context, query *T, opts ...option.QueryOption) ([]T, error) {
	items := []T{}
	if err := r.scope(ctx, query, opts).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns notFound when no row matches. A nil notFound yields (nil, nil).
func (r *reader[T]) Get(ctx context.Context, query *T, notFound error) (*T, error) {
	var item T
	err := r.scope(ctx, query, nil).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *reader[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.scope(ctx, query, opts).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *reader[T]) scope(ctx context.Context, query *T, opts []option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx)
	if query != nil {
		stmt = stmt.Where(query)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
