package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
)

const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// ValidRole reports whether role is one of the membership roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

type Service interface {
	Create(ctx context.Context, ownerID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*Organization, error)
	List(ctx context.Context, req ListOrganizationRequest) (ListOrganizationResponse, error)
	Members(ctx context.Context, orgID snowflake.ID) ([]MemberRow, error)
	AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) error
	AdjustBalance(ctx context.Context, orgID snowflake.ID, delta int64) (*Organization, error)
	Delete(ctx context.Context, id snowflake.ID, hard bool) error
}

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type ListOrganizationRequest struct {
	pagination.Pagination
	Search         string
	OwnerID        snowflake.ID
	IncludeDeleted bool
}

type ListOrganizationResponse struct {
	pagination.PageInfo
	Organizations []Organization `json:"organizations"`
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrAlreadyMember        = errors.New("already_member")
)
