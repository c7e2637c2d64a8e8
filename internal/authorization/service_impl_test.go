package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func testUser(id int64, staff, superuser bool) *userdomain.User {
	u := &userdomain.User{IsActive: true, IsStaff: staff, IsSuperuser: superuser}
	u.BaseRecord = repository.BaseRecord{ID: snowflake.ID(id)}
	return u
}

func TestStaffCanOnlyView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	staff := testUser(1, true, false)

	require.NoError(t, svc.Authorize(ctx, staff, ObjectUser, ActionView))
	require.NoError(t, svc.Authorize(ctx, staff, ObjectPayment, ActionView))
	assert.ErrorIs(t, svc.Authorize(ctx, staff, ObjectUser, ActionDelete), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, staff, ObjectPayment, ActionUpdate), ErrForbidden)
}

func TestSuperuserCanDoAnything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	root := testUser(2, true, true)

	require.NoError(t, svc.Authorize(ctx, root, ObjectUser, ActionDelete))
	require.NoError(t, svc.Authorize(ctx, root, ObjectOrganization, ActionCreate))
	require.NoError(t, svc.Authorize(ctx, root, ObjectAuditLog, ActionView))
}

func TestNonStaffAndInactiveDenied(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, testUser(3, false, false), ObjectUser, ActionView), ErrForbidden)

	inactive := testUser(4, true, true)
	inactive.IsActive = false
	assert.ErrorIs(t, svc.Authorize(ctx, inactive, ObjectUser, ActionView), ErrForbidden)

	assert.ErrorIs(t, svc.Authorize(ctx, nil, ObjectUser, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, testUser(5, true, false), " ", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, testUser(5, true, false), ObjectUser, ""), ErrInvalidAction)
}

func TestRoleFollowsFlagChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u := testUser(6, true, true)
	require.NoError(t, svc.Authorize(ctx, u, ObjectUser, ActionDelete))

	u.IsSuperuser = false
	assert.ErrorIs(t, svc.Authorize(ctx, u, ObjectUser, ActionDelete), ErrForbidden)
	require.NoError(t, svc.Authorize(ctx, u, ObjectUser, ActionView))
}
