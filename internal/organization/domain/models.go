// Package domain contains persistence models for organizations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/repository"
)

// Organization is owned by exactly one user. Balance is kept in the smallest
// currency unit and may go negative.
type Organization struct {
	repository.BaseRecord
	Name    string       `gorm:"type:varchar(256);not null" json:"name"`
	Slug    string       `gorm:"type:varchar(300);not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	OwnerID snowflake.ID `gorm:"not null;index" json:"owner_id"`
	Balance int64        `gorm:"not null;default:0" json:"balance"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

func (o Organization) String() string { return o.Name }

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
