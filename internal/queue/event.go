// Package queue defines the notification payload exchanged over RabbitMQ
// and the background consumer that delivers it.
package queue

import "time"

// Notification kinds.
const (
	KindReceiptDecided        = "receipt.decided"
	KindVehicleAssigned       = "vehicle.assigned"
	KindModuleCompleted       = "module.completed"
	KindCertificationDegraded = "certification.degraded"
)

// NotificationEvent is published after a lifecycle transition commits. It
// carries enough for the consumer to deliver a message without querying the
// primary database.
type NotificationEvent struct {
	Kind       string            `json:"kind"`
	Recipients []uint64          `json:"recipients"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
