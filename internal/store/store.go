// Package store defines the data-store contract the services depend on.
//
// Implementations report failures with apperr kinds: a missing row is
// not_found, a violated uniqueness constraint is conflict and an
// unavailable backend is transient. Two uniqueness constraints are part of
// the contract and must be enforced by the store itself, not only by the
// services: one active assignment per vehicle, and one checkout walkaround
// per assignment.
package store

import (
	"context"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
)

// ProjectFilter narrows ListProjects beyond the actor's scope.
type ProjectFilter struct {
	Status model.ProjectStatus
}

// ReceiptFilter narrows ListReceipts beyond the actor's scope.
type ReceiptFilter struct {
	ProjectID uint64
	Status    model.ReceiptStatus
}

// Queries is the set of record operations available both outside and inside
// a transaction. Create methods assign the generated ID to the record they
// are given. ForUpdate reads lock the row until the surrounding transaction
// ends; outside a transaction they behave like plain reads.
type Queries interface {
	// users
	GetUser(ctx context.Context, id uint64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u model.User) error
	CountAdmins(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, scope policy.Scope) ([]model.User, error)

	// refresh tokens
	StoreRefreshToken(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefreshToken(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeUserRefreshTokens(ctx context.Context, userID uint64) error

	// projects and teams
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id uint64) (model.Project, error)
	GetProjectForUpdate(ctx context.Context, id uint64) (model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id uint64) error
	ListProjects(ctx context.Context, scope policy.Scope, f ProjectFilter) ([]model.Project, error)
	IsProjectMember(ctx context.Context, projectID, userID uint64) (bool, error)
	AddProjectMember(ctx context.Context, m model.ProjectMember) error
	RemoveProjectMember(ctx context.Context, projectID, userID uint64) error
	ListProjectMembers(ctx context.Context, projectID uint64) ([]model.ProjectMember, error)

	// site modules, checklist progress and photos
	CreateSiteModule(ctx context.Context, m *model.SiteModule) error
	GetSiteModule(ctx context.Context, id uint64) (model.SiteModule, error)
	GetSiteModuleForUpdate(ctx context.Context, id uint64) (model.SiteModule, error)
	UpdateSiteModule(ctx context.Context, m model.SiteModule) error
	DeleteSiteModule(ctx context.Context, id uint64) error
	ListSiteModules(ctx context.Context, projectID uint64) ([]model.SiteModule, error)
	CreateChecklistProgress(ctx context.Context, c *model.ChecklistProgress) error
	ListChecklistProgress(ctx context.Context, moduleID uint64) ([]model.ChecklistProgress, error)
	UpdateChecklistProgress(ctx context.Context, c model.ChecklistProgress) error
	CreatePhoto(ctx context.Context, p *model.Photo) error
	GetPhoto(ctx context.Context, id uint64) (model.Photo, error)
	DeletePhoto(ctx context.Context, id uint64) error
	ListPhotos(ctx context.Context, moduleID uint64) ([]model.Photo, error)

	// daily reports
	CreateDailyReport(ctx context.Context, r *model.DailyReport) error
	GetDailyReport(ctx context.Context, id uint64) (model.DailyReport, error)
	DeleteDailyReport(ctx context.Context, id uint64) error
	ListDailyReports(ctx context.Context, scope policy.Scope, projectID uint64) ([]model.DailyReport, error)

	// vehicles, assignments and inspections
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	GetVehicle(ctx context.Context, id uint64) (model.Vehicle, error)
	GetVehicleForUpdate(ctx context.Context, id uint64) (model.Vehicle, error)
	UpdateVehicle(ctx context.Context, v model.Vehicle) error
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	CreateAssignment(ctx context.Context, a *model.VehicleAssignment) error
	GetAssignment(ctx context.Context, id uint64) (model.VehicleAssignment, error)
	GetAssignmentForUpdate(ctx context.Context, id uint64) (model.VehicleAssignment, error)
	UpdateAssignment(ctx context.Context, a model.VehicleAssignment) error
	// ActiveAssignmentForVehicle returns nil, nil when the vehicle is free.
	ActiveAssignmentForVehicle(ctx context.Context, vehicleID uint64) (*model.VehicleAssignment, error)
	ListAssignments(ctx context.Context, scope policy.Scope) ([]model.VehicleAssignment, error)
	CreateWalkaround(ctx context.Context, w *model.WalkaroundInspection) error
	ListWalkarounds(ctx context.Context, assignmentID uint64) ([]model.WalkaroundInspection, error)
	CreateRegularInspection(ctx context.Context, ins *model.RegularInspection) error
	GetRegularInspection(ctx context.Context, id uint64) (model.RegularInspection, error)
	DeleteRegularInspection(ctx context.Context, id uint64) error
	ListRegularInspections(ctx context.Context, vehicleID uint64) ([]model.RegularInspection, error)

	// certifications
	CreateCertification(ctx context.Context, c *model.Certification) error
	GetCertification(ctx context.Context, id uint64) (model.Certification, error)
	UpdateCertification(ctx context.Context, c model.Certification) error
	DeleteCertification(ctx context.Context, id uint64) error
	ListCertifications(ctx context.Context, scope policy.Scope) ([]model.Certification, error)

	// receipts
	CreateReceipt(ctx context.Context, r *model.Receipt) error
	GetReceipt(ctx context.Context, id uint64) (model.Receipt, error)
	GetReceiptForUpdate(ctx context.Context, id uint64) (model.Receipt, error)
	UpdateReceipt(ctx context.Context, r model.Receipt) error
	DeleteReceipt(ctx context.Context, id uint64) error
	ListReceipts(ctx context.Context, scope policy.Scope, f ReceiptFilter) ([]model.Receipt, error)

	// equipment and emergency contacts
	CreateEquipment(ctx context.Context, e *model.Equipment) error
	GetEquipment(ctx context.Context, id uint64) (model.Equipment, error)
	UpdateEquipment(ctx context.Context, e model.Equipment) error
	DeleteEquipment(ctx context.Context, id uint64) error
	ListEquipment(ctx context.Context, scope policy.Scope) ([]model.Equipment, error)
	CreateEmergencyContact(ctx context.Context, c *model.EmergencyContact) error
	GetEmergencyContact(ctx context.Context, id uint64) (model.EmergencyContact, error)
	UpdateEmergencyContact(ctx context.Context, c model.EmergencyContact) error
	DeleteEmergencyContact(ctx context.Context, id uint64) error
	ListEmergencyContacts(ctx context.Context, userID uint64) ([]model.EmergencyContact, error)
}

// Store is a Queries implementation that can also run a unit of work.
//
// InTx runs fn against a transactional view. If fn returns an error, or ctx
// is cancelled before commit, nothing fn wrote becomes visible.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
