// Package notify is the fire-and-forget notifier used by the services. A
// notification is published after the transaction it describes commits;
// failures are logged and never reach the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/field-operations/internal/queue"
)

// Notifier accepts a notification for delivery.
type Notifier interface {
	Notify(ctx context.Context, ev queue.NotificationEvent) error
}

// Nop drops every notification. It is used when no broker is configured.
type Nop struct{}

func (Nop) Notify(context.Context, queue.NotificationEvent) error { return nil }

// Publisher publishes notifications to a durable RabbitMQ queue. Each call
// dials the broker, which is enough for the volume this service sees.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url, queueName string) *Publisher {
	return &Publisher{URL: url, Queue: queueName}
}

// Notify publishes ev as a persistent JSON message.
func (p *Publisher) Notify(ctx context.Context, ev queue.NotificationEvent) error {
	log := logrus.WithFields(logrus.Fields{"component": "notify", "kind": ev.Kind})
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Kind,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// Async sends ev on its own goroutine with a bounded timeout, detached from
// the request context so a finished request does not cancel delivery.
func Async(n Notifier, ev queue.NotificationEvent) {
	if n == nil || len(ev.Recipients) == 0 {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			logrus.WithError(err).WithField("kind", ev.Kind).Warn("notification dropped")
		}
	}()
}
