package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	CreateSuperuser(ctx context.Context, req CreateUserRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, req ListUserRequest) (ListUserResponse, error)
	SetPassword(ctx context.Context, id snowflake.ID, password string) error
	MarkEmailVerified(ctx context.Context, id snowflake.ID) error
	MarkPhoneVerified(ctx context.Context, id snowflake.ID) error
	// Delete soft-deletes by default. It is rejected with ErrOwnerProtected
	// while the user still owns an organization.
	Delete(ctx context.Context, id snowflake.ID, hard bool) error
}

// CreateUserRequest carries the account fields. IsStaff and IsSuperuser are
// pointers so an explicit false can be told apart from an omitted flag.
type CreateUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id"`
	IsStaff     *bool  `json:"is_staff"`
	IsSuperuser *bool  `json:"is_superuser"`
}

type ListUserRequest struct {
	pagination.Pagination
	Search         string
	IncludeDeleted bool
}

type ListUserResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}
