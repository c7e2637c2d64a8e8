package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"github.com/smallbiznis/accounts/pkg/repository"
	"gorm.io/gorm"
)

// Record is the stored form of a one-time password. Token holds ciphertext.
type Record struct {
	repository.BaseRecord
	UserID         snowflake.ID `gorm:"not null;uniqueIndex:ux_one_time_passwords_user"`
	Token          string       `gorm:"type:text;not null"`
	ExpirationDate time.Time    `gorm:"not null"`
}

func (Record) TableName() string { return "one_time_passwords" }

type repo struct {
	db     *gorm.DB
	cipher *TokenCipher
	store  repository.Repository[Record]
}

func NewRepository(db *gorm.DB, cipher *TokenCipher) domain.Repository {
	return &repo{db: db, cipher: cipher, store: repository.ProvideStore[Record](db)}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx, cipher: r.cipher, store: r.store.WithTrx(tx)}
}

func (r *repo) Replace(ctx context.Context, otp *domain.OneTimePassword) error {
	if err := r.DeleteByUser(ctx, otp.UserID); err != nil {
		return err
	}
	sealed, err := r.cipher.Encrypt(otp.Token)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, &Record{
		BaseRecord:     otp.BaseRecord,
		UserID:         otp.UserID,
		Token:          sealed,
		ExpirationDate: otp.ExpirationDate,
	})
}

func (r *repo) FindByUser(ctx context.Context, userID snowflake.ID) (*domain.OneTimePassword, error) {
	rec, err := r.store.FindOne(ctx, &Record{UserID: userID})
	if err != nil {
		return nil, mapErr(err)
	}
	plaintext, err := r.cipher.Decrypt(rec.Token)
	if err != nil {
		return nil, err
	}
	otp := toDomain(rec)
	otp.Token = plaintext
	return otp, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*domain.OneTimePassword, error) {
	rec, err := r.store.FindByID(ctx, id, option.WithDeleted(includeDeleted))
	if err != nil {
		return nil, mapErr(err)
	}
	return toDomain(rec), nil
}

func (r *repo) List(ctx context.Context, userID snowflake.ID, includeDeleted bool, page pagination.Pagination) ([]*domain.OneTimePassword, *pagination.PageInfo, error) {
	var filter *Record
	if userID != 0 {
		filter = &Record{UserID: userID}
	}
	rows, info, err := r.store.Page(ctx, filter, page, option.WithDeleted(includeDeleted))
	if err != nil {
		return nil, nil, err
	}
	out := make([]*domain.OneTimePassword, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomain(rec))
	}
	return out, info, nil
}

// DeleteByUser physically removes every row of the user, soft-deleted ones
// included, so the unique index on user_id is free for the next token.
func (r *repo) DeleteByUser(ctx context.Context, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Record{}).Error
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID, mode repository.DeleteMode) error {
	return mapErr(r.store.Delete(ctx, id, mode))
}

func (r *repo) PurgeExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Model(&Record{}).
		Where("expiration_date < ?", cutoff).
		Order("expiration_date ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&Record{})
	return res.RowsAffected, res.Error
}

func toDomain(rec *Record) *domain.OneTimePassword {
	return &domain.OneTimePassword{
		BaseRecord:     rec.BaseRecord,
		UserID:         rec.UserID,
		ExpirationDate: rec.ExpirationDate,
	}
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrOTPNotFound
	}
	return err
}
