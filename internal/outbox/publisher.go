package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/concert-reservations/internal/adapters/crdb"
	"github.com/robertarktes/concert-reservations/internal/observability"
)

const batchSize = 50

// Store is the staged-event table plus the transaction runner the relay needs
// to hold its batch locks.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUnpublished(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	OldestUnpublishedAge(ctx context.Context, now time.Time) (time.Duration, error)
}

// Broker accepts the relayed events.
type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays committed outbox records to the broker. Delivery is at
// least once: a record is marked PUBLISHED only after the broker accepted it,
// so a crash in between causes a redelivery, which downstream consumers
// tolerate.
type Publisher struct {
	store  Store
	broker Broker
	logger observability.Logger
}

func NewPublisher(store Store, broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{store: store, broker: broker, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.relay(ctx)
		}
	}
}

// relay locks a batch, publishes it and marks it, all inside one transaction
// so the SKIP LOCKED row locks hold until commit and concurrent relays take
// disjoint batches.
func (p *Publisher) relay(ctx context.Context) {
	err := p.store.WithTx(ctx, func(ctx context.Context) error {
		records, err := p.store.GetUnpublished(ctx, batchSize)
		if err != nil {
			return err
		}
		for _, rec := range records {
			msg := amqp.Publishing{
				MessageId:   rec.DedupeKey,
				ContentType: "application/json",
				Body:        rec.Payload,
			}
			if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
				observability.RabbitPublishRetries.Inc()
				p.logger.WithField("outbox_id", rec.ID).Error("failed to publish outbox record", err)
				continue
			}
			if err := p.store.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
				p.logger.WithField("outbox_id", rec.ID).Error("failed to mark outbox record published", err)
			}
		}
		return nil
	})
	if err != nil {
		p.logger.Error("failed to relay outbox batch", err)
	}

	if lag, err := p.store.OldestUnpublishedAge(ctx, time.Now()); err == nil {
		observability.OutboxLag.Set(lag.Seconds())
	}
}
