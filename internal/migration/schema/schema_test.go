package schema

import (
	"testing"

	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{
		"users",
		"organizations",
		"organization_members",
		"one_time_passwords",
		"organization_invites",
		"payments",
		"audit_logs",
		"outbox_events",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("one_time_passwords", "ux_one_time_passwords_user"))
	assert.True(t, conn.Migrator().HasIndex("users", "ux_users_email"))
}
