package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/otp/domain"
	otprepository "github.com/smallbiznis/accounts/internal/otp/repository"
	"github.com/smallbiznis/accounts/internal/providers/email"
	"github.com/smallbiznis/accounts/internal/ratelimit"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc    domain.Service
	conn   *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
	mailer *email.Recorder
}

func newFixture(t *testing.T, limiter ratelimit.Limiter) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&userdomain.User{}, &otprepository.Record{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	cipher, err := otprepository.NewTokenCipher("test-secret")
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	mailer := &email.Recorder{}

	svc := NewService(ServiceParam{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Policy:  config.NewStaticPolicyHolder(config.DefaultPolicy()),
		Repo:    otprepository.NewRepository(conn, cipher),
		Limiter: limiter,
		Email:   mailer,
	})
	return &fixture{svc: svc, conn: conn, clock: clk, node: node, mailer: mailer}
}

func (f *fixture) seedUser(t *testing.T, addr string) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		BaseRecord: repository.NewBaseRecord(f.node.Generate(), f.clock.Now()),
		Email:      addr,
		FirstName:  "Sara",
		IsActive:   true,
	}
	require.NoError(t, f.conn.Create(u).Error)
	return u
}

func (f *fixture) countTokens(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&otprepository.Record{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func TestGenerateReplacesPreviousToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	first, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, first.Token, domain.TokenLength)
	assert.Equal(t, f.clock.Now().Add(domain.DefaultTTL), first.ExpirationDate)

	second, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.countTokens(t, u.ID))

	ok, err := f.svc.Validate(ctx, u.ID, second.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	if first.Token != second.Token {
		ok, err = f.svc.Validate(ctx, u.ID, first.Token)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	res, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID, TTL: time.Minute})
	require.NoError(t, err)

	f.clock.Advance(59 * time.Second)
	ok, err := f.svc.Validate(ctx, u.ID, res.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(time.Second)
	ok, err = f.svc.Validate(ctx, u.ID, res.Token)
	require.NoError(t, err)
	assert.False(t, ok, "expiration is exclusive")
}

func TestValidateUnknownInputs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	ok, err := f.svc.Validate(ctx, u.ID, "12345678")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Validate(ctx, u.ID, "123")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Validate(ctx, 0, "12345678")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateValidatesUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Generate(context.Background(), domain.GenerateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = f.svc.Generate(context.Background(), domain.GenerateRequest{UserID: 42})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestConcurrentGenerateKeepsOneRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.countTokens(t, u.ID))
}

func TestGenerateRetriesAfterUniqueConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	// A competing row for the same user lands between the delete and the
	// insert of the first attempt.
	inserts := 0
	err := f.conn.Callback().Create().Before("gorm:create").Register("test:competing_otp", func(tx *gorm.DB) {
		if tx.Statement.Table != "one_time_passwords" {
			return
		}
		inserts++
		if inserts != 1 {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).Create(&otprepository.Record{
			BaseRecord:     repository.NewBaseRecord(f.node.Generate(), f.clock.Now()),
			UserID:         u.ID,
			Token:          "competing",
			ExpirationDate: f.clock.Now().Add(time.Minute),
		})
	})
	require.NoError(t, err)

	res, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)
	// first attempt, the competing insert, then the retry
	assert.Equal(t, 3, inserts)
	assert.EqualValues(t, 1, f.countTokens(t, u.ID))

	ok, err := f.svc.Validate(ctx, u.ID, res.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.NewMemoryLimiter())
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	for i := 0; i < config.DefaultPolicy().OTP.RateLimit.Burst; i++ {
		_, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
		require.NoError(t, err)
	}
	_, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGenerateDeliversByEmail(t *testing.T) {
	f := newFixture(t, nil)
	u := f.seedUser(t, "sara@example.com")

	res, err := f.svc.Generate(context.Background(), domain.GenerateRequest{UserID: u.ID, Deliver: true})
	require.NoError(t, err)
	assert.True(t, res.Delivered)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"sara@example.com"}, sent[0].To)
	assert.Equal(t, res.Token, sent[0].Data["token"])
}

func TestVerifyConsumesTokenAndMarksChannel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	res, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Verify(ctx, u.ID, res.Token, "fax"), domain.ErrInvalidChannel)

	wrong := "00000000"
	if res.Token == wrong {
		wrong = "11111111"
	}
	assert.ErrorIs(t, f.svc.Verify(ctx, u.ID, wrong, domain.ChannelEmail), domain.ErrInvalidToken)

	require.NoError(t, f.svc.Verify(ctx, u.ID, res.Token, domain.ChannelEmail))
	assert.EqualValues(t, 0, f.countTokens(t, u.ID))

	var got userdomain.User
	require.NoError(t, f.conn.First(&got, "id = ?", u.ID).Error)
	assert.True(t, got.VerifiedEmail)
	assert.False(t, got.VerifiedPhone)

	assert.ErrorIs(t, f.svc.Verify(ctx, u.ID, res.Token, domain.ChannelEmail), domain.ErrInvalidToken)
}

func TestSoftDeletedTokenIsInvalid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.seedUser(t, "sara@example.com")

	res, err := f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, domain.ListOTPRequest{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, list.OTPs, 1)
	id := list.OTPs[0].ID

	require.NoError(t, f.svc.Delete(ctx, id, false))

	ok, err := f.svc.Validate(ctx, u.ID, res.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.GetByID(ctx, id, false)
	assert.ErrorIs(t, err, domain.ErrOTPNotFound)
	got, err := f.svc.GetByID(ctx, id, true)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	// A new token replaces the soft-deleted row despite the unique index.
	_, err = f.svc.Generate(ctx, domain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.countTokens(t, u.ID))
}

func TestNewTokenDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		tok, err := newToken(domain.TokenLength)
		require.NoError(t, err)
		require.Len(t, tok, domain.TokenLength)
		for _, c := range tok {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}

func TestPurgeExpiredKeepsRecentTokens(t *testing.T) {
	f := newFixture(t, nil)
	stale := f.seedUser(t, "stale@example.com")
	fresh := f.seedUser(t, "fresh@example.com")

	_, err := f.svc.Generate(context.Background(), domain.GenerateRequest{UserID: stale.ID})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.Generate(context.Background(), domain.GenerateRequest{UserID: fresh.ID})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	purged, err := f.svc.PurgeExpired(context.Background(), 10*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.Zero(t, f.countTokens(t, stale.ID))
	assert.Equal(t, int64(1), f.countTokens(t, fresh.ID))

	purged, err = f.svc.PurgeExpired(context.Background(), 10*time.Minute, 0)
	require.NoError(t, err)
	assert.Zero(t, purged)
}
