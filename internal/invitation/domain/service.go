package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
)

type InviteRequest struct {
	OrgID     snowflake.ID  `json:"org_id"`
	Email     string        `json:"email"`
	InvitedBy *snowflake.ID `json:"invited_by,omitempty"`
}

type ListInviteRequest struct {
	pagination.Pagination
	OrgID          snowflake.ID
	Email          string
	Status         InvitationStatus
	IncludeDeleted bool
}

type ListInviteResponse struct {
	pagination.PageInfo
	Invites []OrganizationInvite `json:"organization_invites"`
}

type Service interface {
	Invite(ctx context.Context, req InviteRequest) (*OrganizationInvite, error)
	// Accept moves a pending invite to accepted and adds the user as a member.
	Accept(ctx context.Context, inviteID, userID snowflake.ID) (*OrganizationInvite, error)
	GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*OrganizationInvite, error)
	List(ctx context.Context, req ListInviteRequest) (ListInviteResponse, error)
	Delete(ctx context.Context, id snowflake.ID, hard bool) error
}

var (
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInviteNotFound      = errors.New("invite_not_found")
	ErrInviteNotPending    = errors.New("invite_not_pending")
	ErrInviteEmailMismatch = errors.New("invite_email_mismatch")
)
