package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"github.com/smallbiznis/accounts/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIsEncryptedAtRest(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Record{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	c, err := NewTokenCipher("at-rest")
	require.NoError(t, err)

	repo := NewRepository(conn, c)
	ctx := context.Background()
	now := time.Now().UTC()

	otp := &domain.OneTimePassword{
		BaseRecord:     repository.NewBaseRecord(node.Generate(), now),
		UserID:         7,
		Token:          "87654321",
		ExpirationDate: now.Add(time.Minute),
	}
	require.NoError(t, repo.Replace(ctx, otp))

	var raw Record
	require.NoError(t, conn.First(&raw, "user_id = ?", 7).Error)
	assert.NotEqual(t, "87654321", raw.Token)

	got, err := repo.FindByUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "87654321", got.Token)

	listed, _, err := repo.List(ctx, 7, false, paginationDefault())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Token)

	second := &domain.OneTimePassword{
		BaseRecord:     repository.NewBaseRecord(node.Generate(), now),
		UserID:         7,
		Token:          "11112222",
		ExpirationDate: now.Add(time.Minute),
	}
	require.NoError(t, repo.Replace(ctx, second))

	var count int64
	require.NoError(t, conn.Model(&Record{}).Where("user_id = ?", 7).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = repo.FindByUser(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
}

func paginationDefault() pagination.Pagination { return pagination.Pagination{} }
