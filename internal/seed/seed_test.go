package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/migration/schema"
	orgrepository "github.com/smallbiznis/accounts/internal/organization/repository"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	userservice "github.com/smallbiznis/accounts/internal/user/service"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) userdomain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, schema.AutoMigrate(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return userservice.NewService(userservice.ServiceParam{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.System{},
		Policy:  config.NewStaticPolicyHolder(config.DefaultPolicy()),
		OrgRepo: orgrepository.NewRepository(conn),
	})
}

func TestEnsureSuperuserIsIdempotent(t *testing.T) {
	users := newUserService(t)
	ctx := context.Background()
	cfg := config.BootstrapConfig{AdminEmail: "admin@example.com", AdminPassword: "change-me-now"}

	require.NoError(t, EnsureSuperuser(ctx, users, cfg, zap.NewNop()))
	require.NoError(t, EnsureSuperuser(ctx, users, cfg, zap.NewNop()))

	u, err := users.Authenticate(ctx, "admin@example.com", "change-me-now")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
}

func TestEnsureSuperuserSkipsWithoutEmail(t *testing.T) {
	users := newUserService(t)
	require.NoError(t, EnsureSuperuser(context.Background(), users, config.BootstrapConfig{}, zap.NewNop()))

	resp, err := users.List(context.Background(), userdomain.ListUserRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Users)

	err = EnsureSuperuser(context.Background(), users, config.BootstrapConfig{AdminEmail: "a@example.com"}, zap.NewNop())
	assert.Error(t, err)
}
