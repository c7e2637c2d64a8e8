// Package domain contains the user account model and contracts.
package domain

import (
	"time"

	"github.com/smallbiznis/accounts/pkg/repository"
)

// User is an account whose login identifier is its email address.
type User struct {
	repository.BaseRecord
	Email         string     `gorm:"type:varchar(254);not null;uniqueIndex:ux_users_email" json:"email"`
	Username      string     `gorm:"type:varchar(150)" json:"username"`
	PhoneNumber   string     `gorm:"type:varchar(11)" json:"phone_number"`
	FirstName     string     `gorm:"type:varchar(150)" json:"first_name"`
	LastName      string     `gorm:"type:varchar(150)" json:"last_name"`
	NationalID    string     `gorm:"type:varchar(10)" json:"national_id,omitempty"`
	VerifiedEmail bool       `gorm:"not null" json:"verified_email"`
	VerifiedPhone bool       `gorm:"not null" json:"verified_phone"`
	PasswordHash  string     `gorm:"type:text;not null" json:"-"`
	IsStaff       bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser   bool       `gorm:"not null" json:"is_superuser"`
	IsActive      bool       `gorm:"not null" json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u User) String() string { return u.Email }

// FullName joins first and last name, either of which may be empty.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
