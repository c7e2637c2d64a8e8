package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/repository"
)

type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
)

func (s InvitationStatus) Valid() bool {
	return s == StatusPending || s == StatusAccepted
}

// OrganizationInvite always starts out pending.
type OrganizationInvite struct {
	repository.BaseRecord
	OrgID     snowflake.ID     `gorm:"not null;index" json:"org_id"`
	Email     string           `gorm:"type:varchar(254);not null;index" json:"email"`
	Status    InvitationStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	InvitedBy *snowflake.ID    `json:"invited_by,omitempty"`
}

func (OrganizationInvite) TableName() string { return "organization_invites" }
