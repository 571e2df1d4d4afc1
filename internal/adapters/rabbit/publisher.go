package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all reservation lifecycle events flow
// through. Routing keys are event types, e.g. "reservation.settled".
const Exchange = "concert.events"

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

// Publish routes msg through the events exchange under the given key.
// Messages go out persistent so a broker restart does not drop them.
func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	msg.DeliveryMode = amqp.Persistent
	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, msg)
}
