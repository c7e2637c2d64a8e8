package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	orgrepository "github.com/smallbiznis/accounts/internal/organization/repository"
	"github.com/smallbiznis/accounts/internal/outbox"
	"github.com/smallbiznis/accounts/internal/providers/email"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc     domain.Service
	conn    *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	mailer  *email.Recorder
	orgRepo organizationdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&userdomain.User{},
		&organizationdomain.Organization{},
		&organizationdomain.OrganizationMember{},
		&domain.OrganizationInvite{},
		&outbox.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	mailer := &email.Recorder{}
	orgRepo := orgrepository.NewRepository(conn)

	svc := NewService(ServiceParam{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		OrgRepo:   orgRepo,
		Publisher: outbox.NewPublisher(conn, node, clk),
		Email:     mailer,
	})
	return &fixture{svc: svc, conn: conn, node: node, clock: clk, mailer: mailer, orgRepo: orgRepo}
}

func (f *fixture) seedUser(t *testing.T, addr string) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		BaseRecord: repository.NewBaseRecord(f.node.Generate(), f.clock.Now()),
		Email:      addr,
		IsActive:   true,
	}
	require.NoError(t, f.conn.Create(u).Error)
	return u
}

func (f *fixture) seedOrg(t *testing.T, owner *userdomain.User) *organizationdomain.Organization {
	t.Helper()
	id := f.node.Generate()
	org := &organizationdomain.Organization{
		BaseRecord: repository.NewBaseRecord(id, f.clock.Now()),
		Name:       "Acme",
		Slug:       "acme-" + id.Base36(),
		OwnerID:    owner.ID,
	}
	require.NoError(t, f.conn.Create(org).Error)
	return org
}

func TestInviteStartsPendingAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	org := f.seedOrg(t, owner)

	invite, err := f.svc.Invite(ctx, domain.InviteRequest{
		OrgID:     org.ID,
		Email:     " New.Member@EXAMPLE.com ",
		InvitedBy: &owner.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, invite.Status)
	assert.Equal(t, "New.Member@example.com", invite.Email)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, email.TemplateInviteMember, sent[0].Template)
	assert.Equal(t, "Acme", sent[0].Data["org_name"])

	var events []outbox.Event
	require.NoError(t, f.conn.Where("topic = ?", outbox.InviteCreatedTopic).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, invite.ID, events[0].AggregateID)
}

func TestInviteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	org := f.seedOrg(t, owner)

	_, err := f.svc.Invite(ctx, domain.InviteRequest{OrgID: org.ID, Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Invite(ctx, domain.InviteRequest{OrgID: 12345, Email: "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	ghost := snowflake.ID(999)
	_, err = f.svc.Invite(ctx, domain.InviteRequest{OrgID: org.ID, Email: "a@example.com", InvitedBy: &ghost})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestInviteEmailFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = assert.AnError
	owner := f.seedUser(t, "owner@example.com")
	org := f.seedOrg(t, owner)

	invite, err := f.svc.Invite(context.Background(), domain.InviteRequest{OrgID: org.ID, Email: "a@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, invite.ID)
}

func TestAcceptAddsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	org := f.seedOrg(t, owner)
	member := f.seedUser(t, "member@example.com")
	other := f.seedUser(t, "other@example.com")

	invite, err := f.svc.Invite(ctx, domain.InviteRequest{OrgID: org.ID, Email: "member@example.com"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, invite.ID, other.ID)
	assert.ErrorIs(t, err, domain.ErrInviteEmailMismatch)

	accepted, err := f.svc.Accept(ctx, invite.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	ok, err := f.orgRepo.IsMember(ctx, org.ID, member.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Accept(ctx, invite.ID, member.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotPending)

	_, err = f.svc.Accept(ctx, 1, member.ID)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestListFiltersAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	org := f.seedOrg(t, owner)
	member := f.seedUser(t, "b@example.com")

	a, err := f.svc.Invite(ctx, domain.InviteRequest{OrgID: org.ID, Email: "a@example.com"})
	require.NoError(t, err)
	b, err := f.svc.Invite(ctx, domain.InviteRequest{OrgID: org.ID, Email: "b@example.com"})
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, b.ID, member.ID)
	require.NoError(t, err)

	resp, err := f.svc.List(ctx, domain.ListInviteRequest{OrgID: org.ID, Status: domain.StatusPending})
	require.NoError(t, err)
	require.Len(t, resp.Invites, 1)
	assert.Equal(t, a.ID, resp.Invites[0].ID)

	resp, err = f.svc.List(ctx, domain.ListInviteRequest{Email: "B@EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Len(t, resp.Invites, 0, "local part is case sensitive")

	resp, err = f.svc.List(ctx, domain.ListInviteRequest{Email: "b@EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Len(t, resp.Invites, 1)

	_, err = f.svc.List(ctx, domain.ListInviteRequest{Status: "expired"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, f.svc.Delete(ctx, a.ID, false))
	_, err = f.svc.GetByID(ctx, a.ID, false)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	_, err = f.svc.GetByID(ctx, a.ID, true)
	require.NoError(t, err)

	resp, err = f.svc.List(ctx, domain.ListInviteRequest{OrgID: org.ID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, resp.Invites, 2)

	require.NoError(t, f.svc.Delete(ctx, a.ID, true))
	_, err = f.svc.GetByID(ctx, a.ID, true)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, a.ID, true), domain.ErrInviteNotFound)
}
