package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestPublishStoresEventWithCorrelation(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Event{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	pub := NewPublisher(conn, node, clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	ctx := obscontext.WithCorrelationID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, pub.Publish(ctx, nil, OrganizationCreatedTopic, 42, map[string]any{"name": "Acme"}))

	var events []Event
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, OrganizationCreatedTopic, events[0].Topic)
	assert.Equal(t, snowflake.ID(42), events[0].AggregateID)
	assert.Equal(t, "Acme", events[0].Payload["name"])
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", events[0].Metadata["correlation_id"])
	assert.False(t, events[0].Published)
}

func TestPublishRollsBackWithTransaction(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Event{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	pub := NewPublisher(conn, node, clock.System{})

	boom := errors.New("boom")
	err = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, pub.Publish(context.Background(), tx, PaymentPaidTopic, 1, nil))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPublishRequiresTopic(t *testing.T) {
	pub := NewPublisher(nil, nil, clock.System{})
	assert.ErrorIs(t, pub.Publish(context.Background(), nil, " ", 1, nil), ErrMissingTopic)
}

type failingSink struct {
	topic     string
	delivered []string
}

func (s *failingSink) Deliver(_ context.Context, event Event) error {
	if event.Topic == s.topic {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, event.Topic)
	return nil
}

func TestRelayMarksDeliveredEventsPublished(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Event{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	pub := NewPublisher(conn, node, clk)

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, nil, OrganizationCreatedTopic, 1, nil))
	clk.Advance(time.Second)
	require.NoError(t, pub.Publish(ctx, nil, PaymentPaidTopic, 2, nil))
	clk.Advance(time.Second)
	require.NoError(t, pub.Publish(ctx, nil, InviteCreatedTopic, 3, nil))

	sink := &failingSink{topic: PaymentPaidTopic}
	relay := NewRelay(conn, zap.NewNop(), clk).WithSink(sink)

	delivered, err := relay.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{OrganizationCreatedTopic, InviteCreatedTopic}, sink.delivered)

	var pending []Event
	require.NoError(t, conn.Where("published = ?", false).Find(&pending).Error)
	require.Len(t, pending, 1)
	assert.Equal(t, PaymentPaidTopic, pending[0].Topic)

	var published Event
	require.NoError(t, conn.Where("topic = ?", OrganizationCreatedTopic).First(&published).Error)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.PublishedAt.Equal(clk.Now()))
}

func TestRelayRespectsBatchLimit(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Event{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	pub := NewPublisher(conn, node, clk)

	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Publish(context.Background(), nil, OrganizationCreatedTopic, snowflake.ID(i+1), nil))
	}

	relay := NewRelay(conn, zap.NewNop(), clk)
	delivered, err := relay.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	delivered, err = relay.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}
