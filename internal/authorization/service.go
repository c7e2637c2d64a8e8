package authorization

import (
	"context"
	"errors"

	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
)

const (
	ObjectUser               = "user"
	ObjectOrganization       = "organization"
	ObjectOTP                = "otp"
	ObjectOrganizationInvite = "organization_invite"
	ObjectPayment            = "payment"
	ObjectAuditLog           = "audit_log"
	ObjectOutbox             = "outbox"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	RoleStaff     = "role:staff"
	RoleSuperuser = "role:superuser"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Service interface {
	// Authorize checks whether user may perform action on object. Only
	// active staff accounts hold a role.
	Authorize(ctx context.Context, user *userdomain.User, object string, action string) error
}
