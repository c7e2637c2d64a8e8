package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/repository"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusCanceled Status = "canceled"
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCanceled, StatusPending, StatusPaid:
		return true
	default:
		return false
	}
}

// Payment belongs to an organization and optionally to the user who made it.
// AuthorityData is opaque gateway metadata and is never nil once persisted.
type Payment struct {
	repository.BaseRecord
	OrgID         snowflake.ID      `gorm:"not null;index" json:"org_id"`
	UserID        *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Amount        int64             `gorm:"not null" json:"amount"`
	Status        Status            `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	AuthorityData datatypes.JSONMap `json:"authority_data"`
}

func (Payment) TableName() string { return "payments" }
