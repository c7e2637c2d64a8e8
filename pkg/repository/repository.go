package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record_not_found")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

// DeleteMode selects between marking a row deleted and removing it.
type DeleteMode int

const (
	SoftDelete DeleteMode = iota
	HardDelete
)

// DeleteModeFor maps a hard flag to a DeleteMode.
func DeleteModeFor(hard bool) DeleteMode {
	if hard {
		return HardDelete
	}
	return SoftDelete
}

// Repository is a typed store over a table whose model embeds BaseRecord.
// Reads hide soft-deleted rows unless option.IncludeDeleted is passed.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Create(ctx context.Context, resource *T) error
	FindByID(ctx context.Context, id snowflake.ID, opts ...option.QueryOption) (*T, error)
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	Page(ctx context.Context, filter *T, page pagination.Pagination, opts ...option.QueryOption) ([]*T, *pagination.PageInfo, error)
	Count(ctx context.Context, filter *T, opts ...option.QueryOption) (int64, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, id snowflake.ID, mode DeleteMode) error
}
