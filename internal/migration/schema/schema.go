// Package schema lists the persisted models for dialects that are created
// with gorm AutoMigrate instead of the embedded SQL migrations.
package schema

import (
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	invitationdomain "github.com/smallbiznis/accounts/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	otprepository "github.com/smallbiznis/accounts/internal/otp/repository"
	"github.com/smallbiznis/accounts/internal/outbox"
	paymentdomain "github.com/smallbiznis/accounts/internal/payment/domain"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"gorm.io/gorm"
)

// Models is ordered so referenced tables come first.
func Models() []any {
	return []any{
		&userdomain.User{},
		&organizationdomain.Organization{},
		&organizationdomain.OrganizationMember{},
		&otprepository.Record{},
		&invitationdomain.OrganizationInvite{},
		&paymentdomain.Payment{},
		&auditdomain.AuditLog{},
		&outbox.Event{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
