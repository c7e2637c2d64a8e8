package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
)

type CreatePaymentRequest struct {
	OrgID         snowflake.ID   `json:"org_id"`
	UserID        *snowflake.ID  `json:"user_id,omitempty"`
	Amount        int64          `json:"amount"`
	AuthorityData map[string]any `json:"authority_data,omitempty"`
}

type ListPaymentRequest struct {
	pagination.Pagination
	OrgID          snowflake.ID
	UserID         snowflake.ID
	Status         Status
	IncludeDeleted bool
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	// MarkPaid settles a pending payment and credits the organization balance.
	MarkPaid(ctx context.Context, id snowflake.ID, authorityData map[string]any) (*Payment, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Payment, error)
	GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*Payment, error)
	List(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
	Delete(ctx context.Context, id snowflake.ID, hard bool) error
	// Receipt renders a PDF receipt for a paid payment.
	Receipt(ctx context.Context, id snowflake.ID) ([]byte, error)
}

var (
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrNotPaid             = errors.New("payment_not_paid")
)
