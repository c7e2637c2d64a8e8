package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/accounts/internal/config"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"go.uber.org/zap"
)

// EnsureSuperuser creates the bootstrap administrator once. It is a no-op
// when no admin email is configured or the account already exists, even if
// soft-deleted.
func EnsureSuperuser(ctx context.Context, users userdomain.Service, cfg config.BootstrapConfig, log *zap.Logger) error {
	email := strings.TrimSpace(cfg.AdminEmail)
	if email == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return errors.New("bootstrap admin password is required")
	}

	user, err := users.CreateSuperuser(ctx, userdomain.CreateUserRequest{
		Email:    email,
		Password: cfg.AdminPassword,
	})
	switch {
	case errors.Is(err, userdomain.ErrUserExists):
		log.Debug("bootstrap superuser already present")
		return nil
	case err != nil:
		return err
	}

	log.Info("bootstrap superuser created", zap.String("user_id", user.ID.String()))
	return nil
}
