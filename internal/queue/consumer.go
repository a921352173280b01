package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Delivery hands a decoded notification to the outbound channel (email,
// push). The default writes one line per recipient to logs/notifications.log.
type Delivery func(ev NotificationEvent) error

// Consumer drains the notification queue.
type Consumer struct {
	URL     string
	Queue   string
	Deliver Delivery
}

// Run connects, declares the durable queue and consumes until ctx is
// cancelled, reconnecting with exponential backoff when the broker goes
// away. A message that fails to decode or deliver is rejected without
// requeue so one bad payload cannot wedge the queue.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Deliver == nil {
		c.Deliver = FileDelivery(filepath.Join("logs", "notifications.log"))
	}
	log := logrus.WithField("component", "notify-consumer")
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warnf("dial broker failed: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logrus.Warnf("notify-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				logrus.WithError(err).Warn("notify-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" || len(ev.Recipients) == 0 {
		return errors.New("notification without kind or recipients")
	}
	return c.Deliver(ev)
}

// FileDelivery appends a human readable line per recipient to path.
func FileDelivery(path string) Delivery {
	return func(ev NotificationEvent) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir logs: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		return WriteLines(f, ev)
	}
}

// WriteLines renders ev as one line per recipient.
func WriteLines(w io.Writer, ev NotificationEvent) error {
	attrs := make([]string, 0, len(ev.Attributes))
	for k, v := range ev.Attributes {
		attrs = append(attrs, k+"="+v)
	}
	slices.Sort(attrs)
	for _, uid := range ev.Recipients {
		line := fmt.Sprintf("[%s] %s | to=%d | subject=%q | %s\n",
			ev.OccurredAt.UTC().Format(time.RFC3339), ev.Kind, uid, ev.Subject, strings.Join(attrs, " "))
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
	}
	return nil
}
