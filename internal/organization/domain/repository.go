package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MemberRow is a member joined with the user columns the admin list shows.
type MemberRow struct {
	UserID    snowflake.ID `json:"user_id"`
	Email     string       `json:"email"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Role      string       `json:"role"`
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AddMember(ctx context.Context, member OrganizationMember) error
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberRow, error)
	DeleteMembersByOrg(ctx context.Context, orgID snowflake.ID) error
	DeleteMembersByUser(ctx context.Context, userID snowflake.ID) error
	// AdjustBalance applies delta atomically in SQL and reports whether a
	// live organization matched.
	AdjustBalance(ctx context.Context, orgID snowflake.ID, delta int64) (bool, error)
	CountOwnedBy(ctx context.Context, userID snowflake.ID, includeDeleted bool) (int64, error)
}
