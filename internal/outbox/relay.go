package outbox

import (
	"context"

	"github.com/smallbiznis/accounts/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRelayBatch = 50

// Sink receives events drained from the outbox table.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// LogSink writes each event to the structured log. It is the default sink
// until a broker is configured.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Deliver(_ context.Context, event Event) error {
	s.Log.Info("outbox.event",
		zap.String("event_id", event.ID.String()),
		zap.String("topic", event.Topic),
		zap.String("aggregate_id", event.AggregateID.String()),
		zap.Any("metadata", map[string]any(event.Metadata)),
	)
	return nil
}

// Relay moves unpublished events to a Sink and marks them published.
type Relay struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	sink  Sink
}

func NewRelay(db *gorm.DB, log *zap.Logger, clk clock.Clock) *Relay {
	log = log.Named("outbox.relay")
	return &Relay{db: db, log: log, clock: clk, sink: LogSink{Log: log}}
}

// WithSink returns a copy of the relay delivering to sink.
func (r *Relay) WithSink(sink Sink) *Relay {
	cp := *r
	cp.sink = sink
	return &cp
}

// ProcessPending delivers at most limit events, oldest first. A failed
// delivery leaves its event pending for the next pass; the others proceed.
func (r *Relay) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultRelayBatch
	}

	var events []Event
	err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		if err := r.processEvent(ctx, event); err != nil {
			r.log.Error("failed to relay outbox event",
				zap.Error(err),
				zap.String("event_id", event.ID.String()),
				zap.String("topic", event.Topic),
			)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (r *Relay) processEvent(ctx context.Context, event Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.sink.Deliver(ctx, event); err != nil {
			return err
		}
		now := r.clock.Now()
		return tx.Model(&Event{}).
			Where("id = ? AND published = ?", event.ID, false).
			Updates(map[string]any{"published": true, "published_at": now}).Error
	})
}
