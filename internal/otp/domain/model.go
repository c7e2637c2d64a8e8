// Package domain contains the one-time password model and contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"github.com/smallbiznis/accounts/pkg/repository"
	"gorm.io/gorm"
)

const (
	// TokenLength is the number of decimal digits in a token.
	TokenLength = 8
	DefaultTTL  = 10 * time.Minute
)

// OneTimePassword holds at most one row per user. Token is the plaintext
// value; the repository encrypts it on write and decrypts it on read.
type OneTimePassword struct {
	repository.BaseRecord
	UserID         snowflake.ID `gorm:"not null" json:"user_id"`
	Token          string       `gorm:"-" json:"-"`
	ExpirationDate time.Time    `gorm:"not null" json:"expiration_date"`
}

func (OneTimePassword) TableName() string { return "one_time_passwords" }

// IsExpired reports whether the token is no longer valid at now.
func (o OneTimePassword) IsExpired(now time.Time) bool {
	return !o.ExpirationDate.After(now)
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Replace removes every token of the user and stores otp in its place.
	Replace(ctx context.Context, otp *OneTimePassword) error
	FindByUser(ctx context.Context, userID snowflake.ID) (*OneTimePassword, error)
	FindByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*OneTimePassword, error)
	List(ctx context.Context, userID snowflake.ID, includeDeleted bool, page pagination.Pagination) ([]*OneTimePassword, *pagination.PageInfo, error)
	DeleteByUser(ctx context.Context, userID snowflake.ID) error
	Delete(ctx context.Context, id snowflake.ID, mode repository.DeleteMode) error
	// PurgeExpired physically removes up to limit rows that expired before cutoff.
	PurgeExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type Service interface {
	// Generate invalidates prior tokens for the user and returns a new plaintext token.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	// Validate is true only for the user's current, unexpired token.
	Validate(ctx context.Context, userID snowflake.ID, token string) (bool, error)
	// Verify validates and consumes the token, then marks the channel verified.
	Verify(ctx context.Context, userID snowflake.ID, token string, channel Channel) error
	GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*OneTimePassword, error)
	List(ctx context.Context, req ListOTPRequest) (ListOTPResponse, error)
	Delete(ctx context.Context, id snowflake.ID, hard bool) error
	// PurgeExpired drops tokens that expired more than retention ago.
	PurgeExpired(ctx context.Context, retention time.Duration, limit int) (int64, error)
}

type GenerateRequest struct {
	UserID snowflake.ID
	// TTL overrides the policy default when positive.
	TTL time.Duration
	// Deliver sends the token to the user's email address.
	Deliver bool
}

type GenerateResult struct {
	Token          string    `json:"token,omitempty"`
	ExpirationDate time.Time `json:"expiration_date"`
	Delivered      bool      `json:"delivered"`
}

type ListOTPRequest struct {
	pagination.Pagination
	UserID         snowflake.ID
	IncludeDeleted bool
}

type ListOTPResponse struct {
	pagination.PageInfo
	OTPs []OneTimePassword `json:"otps"`
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidChannel = errors.New("invalid_channel")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrOTPNotFound    = errors.New("otp_not_found")
	ErrRateLimited    = errors.New("rate_limited")
	ErrCipherKey      = errors.New("otp_cipher_key_missing")
)
