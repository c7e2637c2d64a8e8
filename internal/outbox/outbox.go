// Package outbox records domain events in the same transaction as the state
// change that produced them.
package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/clock"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	"github.com/smallbiznis/accounts/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrganizationCreatedTopic = "organization.created"
	InviteCreatedTopic       = "invite.created"
	PaymentPaidTopic         = "payment.paid"
)

var Module = fx.Module("outbox",
	fx.Provide(NewPublisher),
	fx.Provide(NewRelay),
)

var ErrMissingTopic = errors.New("missing_topic")

type Event struct {
	ID          snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Topic       string            `gorm:"type:varchar(64);not null;index" json:"topic"`
	AggregateID snowflake.ID      `gorm:"not null;index" json:"aggregate_id"`
	Payload     datatypes.JSONMap `json:"payload"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	Published   bool              `gorm:"not null;index" json:"published"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
}

func (Event) TableName() string { return "outbox_events" }

type Publisher interface {
	// Publish stores the event through tx so it commits or rolls back with
	// the caller's change. A nil tx uses the publisher's own handle.
	Publish(ctx context.Context, tx *gorm.DB, topic string, aggregateID snowflake.ID, payload map[string]any) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewPublisher(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) Publisher {
	return &outboxPublisher{db: db, genID: genID, clock: clk}
}

func (p *outboxPublisher) Publish(ctx context.Context, tx *gorm.DB, topic string, aggregateID snowflake.ID, payload map[string]any) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrMissingTopic
	}
	if payload == nil {
		payload = map[string]any{}
	}

	metadata := correlation.InjectTrace(nil, obscontext.CorrelationIDFromContext(ctx), trace.SpanFromContext(ctx))
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	db := tx
	if db == nil {
		db = p.db
	}
	return db.WithContext(ctx).Create(&Event{
		ID:          p.genID.Generate(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     datatypes.JSONMap(payload),
		Metadata:    datatypes.JSONMap(metadata),
		CreatedAt:   p.clock.Now(),
	}).Error
}
