package model

import "time"

// Role is the business classification of a user. The set is closed; every
// switch over Role in the policy engine handles each value explicitly.
type Role string

const (
	RoleAdmin    Role = "admin"
	RolePM       Role = "pm"
	RoleQA       Role = "qa"
	RoleField    Role = "field"
	RoleForeman  Role = "foreman"
	RoleCustomer Role = "customer"
)

// Roles lists every defined role.
var Roles = []Role{RoleAdmin, RolePM, RoleQA, RoleField, RoleForeman, RoleCustomer}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User mirrors the `users` table.
//
// Fields:
//  ID                  – primary key.
//  Email               – unique login name.
//  PasswordHash        – bcrypt hash, never serialised.
//  Name, Phone         – profile fields the user may edit.
//  Role                – business role; only admins change it.
//  Active              – inactive users are denied every action.
//  CustomerAffiliation – customer id a customer account belongs to.
type User struct {
	ID                  uint64    `json:"id"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	Role                Role      `json:"role"`
	Active              bool      `json:"active"`
	CustomerAffiliation *uint64   `json:"customer_affiliation,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Actor is the authenticated caller of an operation. It is resolved from the
// bearer token on every request and passed explicitly to the policy engine
// and the lifecycle controllers.
type Actor struct {
	ID                  uint64
	Role                Role
	Active              bool
	CustomerAffiliation *uint64
}

// ActorOf builds the Actor view of a stored user.
func ActorOf(u User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Active: u.Active, CustomerAffiliation: u.CustomerAffiliation}
}

// RefreshToken models a row in `refresh_tokens`. Only the SHA-256 hash of the
// raw token is persisted.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// EmergencyContact belongs to exactly one user.
type EmergencyContact struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}

// Equipment is an item issued to a user. The holder acknowledges receipt by
// recording a signature image reference.
type Equipment struct {
	ID           uint64     `json:"id"`
	UserID       uint64     `json:"user_id"`
	Name         string     `json:"name"`
	SerialNumber string     `json:"serial_number"`
	SignatureRef string     `json:"signature_ref,omitempty"`
	SignedAt     *time.Time `json:"signed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
