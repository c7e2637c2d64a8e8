package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	BaseRecord
	Name string `gorm:"type:text;not null"`
}

func (widget) TableName() string { return "widgets" }

func newTestStore(t *testing.T) (Repository[widget], *snowflake.Node) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return ProvideStore[widget](conn), node
}

func seedWidget(t *testing.T, repo Repository[widget], node *snowflake.Node, name string) *widget {
	t.Helper()
	w := &widget{BaseRecord: NewBaseRecord(node.Generate(), time.Now()), Name: name}
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}

func TestSoftDeleteHidesFromDefaultReads(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	keep := seedWidget(t, repo, node, "keep")
	gone := seedWidget(t, repo, node, "gone")

	require.NoError(t, repo.Delete(ctx, gone.ID, SoftDelete))

	_, err := repo.FindByID(ctx, gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := repo.FindByID(ctx, gone.ID, option.IncludeDeleted())
	require.NoError(t, err)
	require.NotNil(t, found.DeletedAt)
	assert.True(t, found.IsDeleted())

	items, err := repo.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].ID)

	all, err := repo.Count(ctx, nil, option.IncludeDeleted())
	require.NoError(t, err)
	assert.EqualValues(t, 2, all)
}

func TestSoftDeleteTwiceReturnsNotFound(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	w := seedWidget(t, repo, node, "once")
	require.NoError(t, repo.Delete(ctx, w.ID, SoftDelete))
	assert.ErrorIs(t, repo.Delete(ctx, w.ID, SoftDelete), ErrNotFound)
}

func TestHardDeleteRemovesRow(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	w := seedWidget(t, repo, node, "hard")
	require.NoError(t, repo.Delete(ctx, w.ID, SoftDelete))
	require.NoError(t, repo.Delete(ctx, w.ID, HardDelete))

	_, err := repo.FindByID(ctx, w.ID, option.IncludeDeleted())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, w.ID, HardDelete), ErrNotFound)
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	w := seedWidget(t, repo, node, "before")
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, repo.Update(ctx, w.ID, map[string]any{"name": "after"}))

	got, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.True(t, got.UpdatedAt.After(w.UpdatedAt))
	assert.WithinDuration(t, w.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestUpdateSkipsDeletedRows(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	w := seedWidget(t, repo, node, "deleted")
	require.NoError(t, repo.Delete(ctx, w.ID, SoftDelete))
	assert.ErrorIs(t, repo.Update(ctx, w.ID, map[string]any{"name": "x"}), ErrNotFound)
}

func TestSearchEscapesWildcards(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	seedWidget(t, repo, node, "100% cotton")
	seedWidget(t, repo, node, "1000 cotton")

	items, err := repo.Find(ctx, nil, option.Search("100%", "name"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "100% cotton", items[0].Name)
}

func TestPageWalksAllRows(t *testing.T) {
	repo, node := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedWidget(t, repo, node, "w")
	}

	var (
		seen  int
		token string
	)
	for {
		items, info, err := repo.Page(ctx, nil, pagination.Pagination{PageToken: token, PageSize: 2})
		require.NoError(t, err)
		seen += len(items)
		if !info.HasMore {
			break
		}
		token = info.NextPageToken
	}
	assert.Equal(t, 5, seen)

	_, _, err := repo.Page(ctx, nil, pagination.Pagination{PageToken: "%%%"})
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
