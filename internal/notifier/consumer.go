package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// StartConsumer runs the notification delivery loop: it consumes the notify
// queue and hands each message to deliver. The default deliver used in
// development just logs the message; production deployments plug in a real
// mailer. The loop reconnects with backoff and never panics; a message that
// fails to decode is rejected without requeue so it cannot wedge the queue.
func StartConsumer(url, queue string, log zerolog.Logger, deliver func(envelope Notification) error) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("notifier: consumer dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, queue, log, deliver); err != nil {
			log.Warn().Err(err).Msg("notifier: consume loop ended, reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, queue string, log zerolog.Logger, deliver func(Notification) error) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for msg := range msgs {
		var env envelope
		if err := json.Unmarshal(msg.Body, &env); err != nil {
			log.Error().Err(err).Msg("notifier: dropping undecodable message")
			_ = msg.Reject(false)
			continue
		}
		if err := deliver(env.Payload); err != nil {
			log.Error().Err(err).Str("message_id", env.MessageID).Msg("notifier: delivery failed")
			_ = msg.Reject(true)
			continue
		}
		_ = msg.Ack(false)
	}
	return fmt.Errorf("delivery channel closed")
}

// LogDelivery is the development deliverer: it records the message instead
// of sending it.
func LogDelivery(log zerolog.Logger) func(Notification) error {
	return func(n Notification) error {
		recipients := make([]string, len(n.Recipients))
		for i, r := range n.Recipients {
			recipients[i] = r.Email
		}
		log.Info().
			Strs("to", recipients).
			Str("subject", n.Subject).
			Str("operation", string(n.Operation)).
			Uint64("project_id", n.ProjectID).
			Msg("notifier: delivered (log only)")
		return nil
	}
}
