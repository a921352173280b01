package model

import "time"

// CertificationStatus is a pure function of the expiration date and today.
type CertificationStatus string

const (
	CertActive       CertificationStatus = "active"
	CertExpiringSoon CertificationStatus = "expiring_soon"
	CertExpired      CertificationStatus = "expired"
)

// Certification mirrors `certifications`. Status is recomputed and persisted
// on every read and every write.
type Certification struct {
	ID             uint64              `json:"id"`
	UserID         uint64              `json:"user_id"`
	Name           string              `json:"name"`
	IssuedDate     *time.Time          `json:"issued_date,omitempty"`
	ExpirationDate time.Time           `json:"expiration_date"`
	Status         CertificationStatus `json:"status"`
	DocumentRef    string              `json:"document_ref,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
