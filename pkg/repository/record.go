package repository

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// BaseRecord carries the identity and lifecycle columns shared by every entity.
// A non-nil DeletedAt marks the row as soft-deleted.
type BaseRecord struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UUID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"uuid"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
	DeletedAt *time.Time   `gorm:"index" json:"deleted_at,omitempty"`
}

// NewBaseRecord stamps a fresh identity for a record about to be created.
func NewBaseRecord(id snowflake.ID, now time.Time) BaseRecord {
	now = now.UTC()
	return BaseRecord{
		ID:        id,
		UUID:      uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (b BaseRecord) IsDeleted() bool {
	return b.DeletedAt != nil
}

// RecordID exposes the primary key to generic helpers such as cursor paging.
func (b *BaseRecord) RecordID() snowflake.ID {
	return b.ID
}
