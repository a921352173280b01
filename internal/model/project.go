package model

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on_hold"
)

// Valid reports whether s is a defined project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

// Project mirrors the `projects` table. Code is unique.
type Project struct {
	ID         uint64        `json:"id"`
	Code       string        `json:"code"`
	Name       string        `json:"name"`
	ManagerID  uint64        `json:"manager_id"`
	QAID       uint64        `json:"qa_id"`
	CustomerID *uint64       `json:"customer_id,omitempty"`
	Status     ProjectStatus `json:"status"`
	CreatedBy  uint64        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ProjectMember assigns a user to a project team.
type ProjectMember struct {
	ProjectID uint64    `json:"project_id"`
	UserID    uint64    `json:"user_id"`
	AddedBy   uint64    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Site identifies one of the two sites of a project.
type Site string

const (
	SiteA Site = "A"
	SiteB Site = "B"
)

// ModuleStatus is derived from photo counts; it is never set directly.
type ModuleStatus string

const (
	ModuleNotStarted ModuleStatus = "not_started"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
)

// SiteModule mirrors `project_site_modules`: one module instance placed on a
// project site, with aggregated photo progress.
type SiteModule struct {
	ID                   uint64       `json:"id"`
	ProjectID            uint64       `json:"project_id"`
	Site                 Site         `json:"site"`
	ModuleID             uint64       `json:"module_id"`
	RequiredPhotoCount   int          `json:"required_photo_count"`
	UploadedPhotoCount   int          `json:"uploaded_photo_count"`
	CompletionPercentage int          `json:"completion_percentage"`
	Status               ModuleStatus `json:"status"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// ChecklistProgress mirrors `checklist_progress`: photo progress of a single
// checklist item under a module instance.
type ChecklistProgress struct {
	ID               uint64 `json:"id"`
	ModuleInstanceID uint64 `json:"module_instance_id"`
	ChecklistItemID  uint64 `json:"checklist_item_id"`
	Label            string `json:"label"`
	RequiredCount    int    `json:"required_count"`
	UploadedCount    int    `json:"uploaded_count"`
	IsCompleted      bool   `json:"is_completed"`
}

// Photo is an uploaded image attached to a module instance and optionally a
// checklist item. Ref is the file store reference; the bytes are never read.
type Photo struct {
	ID               uint64    `json:"id"`
	ModuleInstanceID uint64    `json:"module_instance_id"`
	ChecklistItemID  uint64    `json:"checklist_item_id,omitempty"`
	UserID           uint64    `json:"user_id"`
	Ref              string    `json:"ref"`
	CreatedAt        time.Time `json:"created_at"`
}

// DailyReport is a field report submitted against a project.
type DailyReport struct {
	ID         uint64    `json:"id"`
	ProjectID  uint64    `json:"project_id"`
	UserID     uint64    `json:"user_id"`
	ReportDate time.Time `json:"report_date"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}
