package model

import "time"

// Vehicle mirrors the `vehicles` table.
type Vehicle struct {
	ID          uint64    `json:"id"`
	PlateNumber string    `json:"plate_number"`
	Model       string    `json:"model"`
	Mileage     int       `json:"mileage"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssignmentStatus: active -> returned (terminal).
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentReturned AssignmentStatus = "returned"
)

// VehicleAssignment mirrors `vehicle_assignments`. At most one active
// assignment exists per vehicle; the store enforces it with a unique index.
type VehicleAssignment struct {
	ID              uint64           `json:"id"`
	VehicleID       uint64           `json:"vehicle_id"`
	UserID          uint64           `json:"user_id"`
	Status          AssignmentStatus `json:"status"`
	StartingMileage int              `json:"starting_mileage"`
	EndingMileage   *int             `json:"ending_mileage,omitempty"`
	AssignedBy      uint64           `json:"assigned_by"`
	AssignedDate    time.Time        `json:"assigned_date"`
	ReturnedDate    *time.Time       `json:"returned_date,omitempty"`
}

// InspectionType distinguishes the two walkaround inspections of an assignment.
type InspectionType string

const (
	InspectionCheckout InspectionType = "checkout"
	InspectionCheckin  InspectionType = "checkin"
)

// WalkaroundInspection mirrors `walkaround_inspections`. A checkout is unique
// per assignment and must precede any checkin.
type WalkaroundInspection struct {
	ID           uint64         `json:"id"`
	AssignmentID uint64         `json:"assignment_id"`
	Type         InspectionType `json:"type"`
	Mileage      int            `json:"mileage"`
	HasDamage    bool           `json:"has_damage"`
	FuelLow      bool           `json:"fuel_low"`
	Notes        string         `json:"notes"`
	PhotoRefs    []string       `json:"photo_refs"`
	InspectorID  uint64         `json:"inspector_id"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RegularInspection is a periodic vehicle inspection. Its damage items are
// owned exclusively by it and removed with it.
type RegularInspection struct {
	ID          uint64       `json:"id"`
	VehicleID   uint64       `json:"vehicle_id"`
	InspectorID uint64       `json:"inspector_id"`
	Mileage     int          `json:"mileage"`
	Passed      bool         `json:"passed"`
	Notes       string       `json:"notes"`
	InspectedAt time.Time    `json:"inspected_at"`
	Damages     []DamageItem `json:"damages"`
}

// DamageItem belongs to exactly one RegularInspection.
type DamageItem struct {
	ID           uint64 `json:"id"`
	InspectionID uint64 `json:"inspection_id"`
	Location     string `json:"location"`
	Severity     string `json:"severity"`
	Description  string `json:"description"`
	PhotoRef     string `json:"photo_ref,omitempty"`
}
