package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQPPublisher dispatches notifications by publishing them to a durable
// RabbitMQ queue consumed by the delivery worker. The connection is dialed
// per publish so a broker restart never leaves the engine holding a dead
// channel; notification volume is low enough that this is fine.
type AMQPPublisher struct {
	url   string
	queue string
	log   zerolog.Logger
}

func NewAMQPPublisher(url, queue string, log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, log: log}
}

var _ Sender = (*AMQPPublisher)(nil)

// envelope is the wire format put on the queue.
type envelope struct {
	MessageID string       `json:"messageId"`
	SentAt    time.Time    `json:"sentAt"`
	Payload   Notification `json:"payload"`
}

// Send publishes the notification as a persistent JSON message. Any broker
// failure is logged and returned; the caller decides whether delivery
// failure blocks the primary operation.
func (p *AMQPPublisher) Send(ctx context.Context, n Notification) (*Result, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error().Err(err).Msg("notifier: broker dial failed")
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Msg("notifier: channel open failed")
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("notifier: queue declare failed")
		return nil, err
	}

	env := envelope{
		MessageID: uuid.NewString(),
		SentAt:    time.Now().UTC(),
		Payload:   n,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.MessageID,
		Timestamp:    env.SentAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("notifier: publish failed")
		return nil, err
	}
	return &Result{MessageID: env.MessageID}, nil
}
