package model

import "time"

// ReceiptStatus: pending -> {approved, rejected}; approved -> exported.
type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptApproved ReceiptStatus = "approved"
	ReceiptRejected ReceiptStatus = "rejected"
	ReceiptExported ReceiptStatus = "exported"
)

func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptPending, ReceiptApproved, ReceiptRejected, ReceiptExported:
		return true
	}
	return false
}

// Receipt mirrors `receipts`. Amounts are stored in cents.
type Receipt struct {
	ID          uint64        `json:"id"`
	ProjectID   uint64        `json:"project_id"`
	UserID      uint64        `json:"user_id"`
	AmountCents int64         `json:"amount_cents"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	ImageRef    string        `json:"image_ref,omitempty"`
	Status      ReceiptStatus `json:"status"`
	DecidedBy   *uint64       `json:"decided_by,omitempty"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
	ExportedAt  *time.Time    `json:"exported_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
