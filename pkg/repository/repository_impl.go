package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) FindByID(ctx context.Context, id snowflake.ID, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, nil, opts...).Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, filter, opts...).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	err := r.buildQuery(ctx, filter, opts...).Find(&result).Error
	return result, err
}

func (r *store[T]) Page(ctx context.Context, filter *T, page pagination.Pagination, opts ...option.QueryOption) ([]*T, *pagination.PageInfo, error) {
	size := page.Size()
	stmt := r.buildQuery(ctx, filter, opts...)

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, ErrInvalidPageToken
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, ErrInvalidPageToken
		}
		stmt = stmt.Where("id > ?", afterID)
	}

	var rows []*T
	if err := stmt.Order("id ASC").Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	return pagination.BuildCursorPageInfo(rows, size, func(item *T) pagination.Cursor {
		return pagination.Cursor{ID: recordID(item).String()}
	})
}

func (r *store[T]) Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, filter, opts...).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *store[T]) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = r.now()
	}

	tx := r.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *store[T]) Delete(ctx context.Context, id snowflake.ID, mode DeleteMode) error {
	var tx *gorm.DB
	switch mode {
	case HardDelete:
		tx = r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	default:
		now := r.now()
		tx = r.db.WithContext(ctx).
			Model(new(T)).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(map[string]any{"deleted_at": now, "updated_at": now})
	}
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		stmt = stmt.Where(filter)
	}
	if option.ResolveScope(opts...) == option.ScopeActive {
		stmt = stmt.Where("deleted_at IS NULL")
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		stmt = opt.Apply(stmt)
	}

	return stmt
}

func (r *store[T]) now() time.Time {
	if r.db != nil && r.db.Config != nil && r.db.Config.NowFunc != nil {
		return r.db.Config.NowFunc()
	}
	return time.Now().UTC()
}

type identified interface {
	RecordID() snowflake.ID
}

func recordID(item any) snowflake.ID {
	if v, ok := item.(identified); ok {
		return v.RecordID()
	}
	return 0
}
