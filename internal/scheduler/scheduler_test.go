package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/migration/schema"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
	otprepository "github.com/smallbiznis/accounts/internal/otp/repository"
	otpservice "github.com/smallbiznis/accounts/internal/otp/service"
	"github.com/smallbiznis/accounts/internal/outbox"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	sched  *Scheduler
	conn   *gorm.DB
	clock  *clock.FakeClock
	node   *snowflake.Node
	otps   otpdomain.Service
	events outbox.Publisher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, schema.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	cipher, err := otprepository.NewTokenCipher("test-secret")
	require.NoError(t, err)

	otps := otpservice.NewService(otpservice.ServiceParam{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
		Repo:   otprepository.NewRepository(conn, cipher),
	})

	sched, err := New(Params{
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		OTPSvc: otps,
		Relay:  outbox.NewRelay(conn, zap.NewNop(), clk),
		Config: cfg,
	})
	require.NoError(t, err)

	return &fixture{
		sched:  sched,
		conn:   conn,
		clock:  clk,
		node:   node,
		otps:   otps,
		events: outbox.NewPublisher(conn, node, clk),
	}
}

func (f *fixture) seedToken(t *testing.T, addr string) snowflake.ID {
	t.Helper()
	u := &userdomain.User{
		BaseRecord: repository.NewBaseRecord(f.node.Generate(), f.clock.Now()),
		Email:      addr,
		IsActive:   true,
	}
	require.NoError(t, f.conn.Create(u).Error)
	_, err := f.otps.Generate(context.Background(), otpdomain.GenerateRequest{UserID: u.ID})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) tokenCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&otprepository.Record{}).Count(&n).Error)
	return n
}

func (f *fixture) pendingEvents(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&outbox.Event{}).Where("published = ?", false).Count(&n).Error)
	return n
}

func TestRunOnceSweepsTokensAndRelaysEvents(t *testing.T) {
	f := newFixture(t, Config{OTPRetention: time.Hour})

	f.seedToken(t, "old@example.com")
	f.clock.Advance(2 * time.Hour)
	f.seedToken(t, "new@example.com")
	require.NoError(t, f.events.Publish(context.Background(), nil, outbox.OrganizationCreatedTopic, 7, nil))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, int64(1), f.tokenCount(t))
	assert.Zero(t, f.pendingEvents(t))
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{" OUTBOX_RELAY "}})

	f.seedToken(t, "old@example.com")
	f.clock.Advance(48 * time.Hour)
	require.NoError(t, f.events.Publish(context.Background(), nil, outbox.PaymentPaidTopic, 9, nil))

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Equal(t, int64(1), f.tokenCount(t))
	assert.Zero(t, f.pendingEvents(t))
}

func TestRunJobTreatsDeadlineAsSoftTimeout(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.sched.runJob(context.Background(), "slow", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	assert.NoError(t, err)

	err = f.sched.runJob(context.Background(), "broken", func(ctx context.Context) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunJobRecordsSystemActor(t *testing.T) {
	f := newFixture(t, Config{})

	var run *jobRun
	var actorType, actorID string
	require.NoError(t, f.sched.runJob(context.Background(), JobOTPSweep, func(ctx context.Context) error {
		actorType, actorID = obscontext.ActorFromContext(ctx)
		run = jobRunFromContext(ctx)
		run.AddProcessed(3)
		return nil
	}))
	require.NotNil(t, run)
	assert.Equal(t, JobOTPSweep, run.job)
	assert.Equal(t, 3, run.processed)
	assert.NotEmpty(t, run.runID)
	assert.Equal(t, "system", actorType)
	assert.Equal(t, "scheduler", actorID)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Zero(t, cfg.OTPRetention)

	provided := ProvideConfig(config.Config{Scheduler: config.SchedulerConfig{
		IntervalSeconds:   5,
		BatchSize:         10,
		Jobs:              []string{JobOTPSweep},
		OTPRetentionHours: 2,
	}})
	assert.Equal(t, 5*time.Second, provided.RunInterval)
	assert.Equal(t, 2*time.Hour, provided.OTPRetention)
	assert.Equal(t, []string{JobOTPSweep}, provided.EnabledJobs)
}
