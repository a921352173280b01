// Package policy is the access policy engine. Authorize decides whether an
// actor may perform an action on a resource snapshot; ScopeFor computes the
// visibility filter applied to list queries. Both are pure functions of
// their arguments: nothing is read from the store or from the request.
//
// Every rule switches over the closed set of roles. A role that is not
// handled by a switch falls through to a denial, and TestEveryRoleDecided
// walks model.Roles so that adding a role fails the suite until each
// resource has a decision for it.
package policy

import (
	"slices"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
)

// Resource names a kind of record guarded by the engine.
type Resource string

const (
	Project           Resource = "project"
	SiteModule        Resource = "site_module"
	TeamMember        Resource = "team_member"
	Photo             Resource = "photo"
	DailyReport       Resource = "daily_report"
	Receipt           Resource = "receipt"
	Vehicle           Resource = "vehicle"
	VehicleAssignment Resource = "vehicle_assignment"
	Inspection        Resource = "inspection"
	Certification     Resource = "certification"
	Equipment         Resource = "equipment"
	EmergencyContact  Resource = "emergency_contact"
	User              Resource = "user"
)

// Resources lists every guarded resource.
var Resources = []Resource{
	Project, SiteModule, TeamMember, Photo, DailyReport, Receipt, Vehicle,
	VehicleAssignment, Inspection, Certification, Equipment, EmergencyContact, User,
}

// Action is what the actor wants to do with a resource.
type Action string

const (
	Read       Action = "read"
	List       Action = "list"
	Create     Action = "create"
	Update     Action = "update"
	Delete     Action = "delete"
	Transition Action = "transition"
	Approve    Action = "approve"
	Export     Action = "export"
)

// Actions lists every action.
var Actions = []Action{Read, List, Create, Update, Delete, Transition, Approve, Export}

// Target is the snapshot of the record an action touches.
//
//	Absent        – the referenced record does not exist.
//	OwnerID       – user the record belongs to (submitter, holder, assignee
//	                or, for User and profile records, the subject user).
//	Project       – project the record hangs off, or the project itself.
//	ActorIsMember – the actor is on Project's team.
//	Fields        – fields an update changes; empty means "not field scoped".
type Target struct {
	Absent        bool
	OwnerID       uint64
	Project       *model.Project
	ActorIsMember bool
	Fields        []string
}

// Decision is the outcome of Authorize. Code is empty when Allowed.
type Decision struct {
	Allowed bool
	Code    apperr.Kind
	Reason  string
}

// Err converts a denial into the matching typed error; it is nil on Allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Code == apperr.KindNotFound {
		return apperr.NotFound("%s", d.Reason)
	}
	return apperr.Denied("%s", d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision {
	return Decision{Code: apperr.KindAccessDenied, Reason: reason}
}

// Privileged user fields only an admin may change, even on their own record.
var privilegedUserFields = []string{"role", "active", "customer_affiliation"}

// Fields an equipment holder may set on their own equipment.
var signatureFields = []string{"signature_ref"}

// Authorize decides whether actor may perform a on the r record described by t.
func Authorize(actor model.Actor, r Resource, a Action, t Target) Decision {
	if !actor.Active {
		return deny("account is inactive")
	}
	if t.Absent {
		return Decision{Code: apperr.KindNotFound, Reason: string(r) + " not found"}
	}
	if !actor.Role.Valid() {
		return deny("unknown role")
	}
	if actor.Role == model.RoleAdmin {
		return allow()
	}
	// Listing is narrowed by ScopeFor; an actor with no visibility gets an
	// empty result rather than an error.
	if a == List {
		return allow()
	}
	switch r {
	case Project:
		return project(actor, a, t)
	case SiteModule:
		return siteModule(actor, a, t)
	case TeamMember:
		return teamMember(actor, a, t)
	case Photo:
		return photo(actor, a, t)
	case DailyReport:
		return dailyReport(actor, a, t)
	case Receipt:
		return receipt(actor, a, t)
	case Vehicle:
		return vehicle(actor, a)
	case VehicleAssignment:
		return assignment(actor, a, t)
	case Inspection:
		return inspection(actor, a, t)
	case Certification:
		return certification(actor, a, t)
	case Equipment:
		return equipment(actor, a, t)
	case EmergencyContact:
		return emergencyContact(actor, t)
	case User:
		return user(actor, a, t)
	}
	return deny("unknown resource")
}

func manages(actor model.Actor, p *model.Project) bool {
	return p != nil && p.ManagerID == actor.ID
}

func affiliated(actor model.Actor, p *model.Project) bool {
	return p != nil && actor.CustomerAffiliation != nil && p.CustomerID != nil &&
		*p.CustomerID == *actor.CustomerAffiliation
}

func inProgress(p *model.Project) bool {
	return p != nil && p.Status == model.ProjectInProgress
}

func owns(actor model.Actor, t Target) bool {
	return t.OwnerID != 0 && t.OwnerID == actor.ID
}

func onlyFields(t Target, allowed []string) bool {
	for _, f := range t.Fields {
		if !slices.Contains(allowed, f) {
			return false
		}
	}
	return true
}

func touchesAny(t Target, fields []string) bool {
	for _, f := range t.Fields {
		if slices.Contains(fields, f) {
			return true
		}
	}
	return false
}

// canReadProject is the project visibility rule shared by every child
// resource of a project.
func canReadProject(actor model.Actor, t Target) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RolePM:
		return manages(actor, t.Project)
	case model.RoleCustomer:
		return affiliated(actor, t.Project)
	case model.RoleField, model.RoleQA:
		return inProgress(t.Project)
	case model.RoleForeman:
		return inProgress(t.Project) || t.ActorIsMember
	}
	return false
}

func project(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		if canReadProject(actor, t) {
			return allow()
		}
		return deny("project is not visible to this actor")
	case Create:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM:
			return allow()
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins and project managers create projects")
		}
	case Update, Delete, Transition:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if !manages(actor, t.Project) {
				return deny("project is managed by another user")
			}
			if touchesAny(t, []string{"manager_id"}) {
				return deny("only admins reassign the project manager")
			}
			return allow()
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("role may not modify projects")
		}
	}
	return deny("action not permitted on project")
}

func siteModule(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		if canReadProject(actor, t) {
			return allow()
		}
		return deny("project is not visible to this actor")
	case Create, Update, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if manages(actor, t.Project) {
				return allow()
			}
			return deny("project is managed by another user")
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("role may not change site modules")
		}
	}
	return deny("action not permitted on site module")
}

func teamMember(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		if canReadProject(actor, t) {
			return allow()
		}
		return deny("project is not visible to this actor")
	case Create, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if manages(actor, t.Project) {
				return allow()
			}
			return deny("project is managed by another user")
		case model.RoleForeman:
			if t.ActorIsMember {
				return allow()
			}
			return deny("foreman is not assigned to this project")
		case model.RoleQA, model.RoleField, model.RoleCustomer:
			return deny("role may not manage project teams")
		}
	}
	return deny("action not permitted on team member")
}

func photo(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		if canReadProject(actor, t) {
			return allow()
		}
		return deny("project is not visible to this actor")
	case Create:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if manages(actor, t.Project) {
				return allow()
			}
			return deny("project is managed by another user")
		case model.RoleQA, model.RoleField, model.RoleForeman:
			if canReadProject(actor, t) {
				return allow()
			}
			return deny("project is not open for uploads by this actor")
		case model.RoleCustomer:
			return deny("customers may not upload photos")
		}
	case Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if manages(actor, t.Project) || owns(actor, t) {
				return allow()
			}
			return deny("photo belongs to another user")
		case model.RoleQA, model.RoleField, model.RoleForeman:
			if owns(actor, t) {
				return allow()
			}
			return deny("photo belongs to another user")
		case model.RoleCustomer:
			return deny("customers may not delete photos")
		}
	}
	return deny("action not permitted on photo")
}

func dailyReport(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Create:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if manages(actor, t.Project) && owns(actor, t) {
				return allow()
			}
			return deny("project is managed by another user")
		case model.RoleQA, model.RoleField, model.RoleForeman:
			if !owns(actor, t) {
				return deny("reports are submitted by their author")
			}
			if canReadProject(actor, t) {
				return allow()
			}
			return deny("project is not visible to this actor")
		case model.RoleCustomer:
			return deny("customers may not submit reports")
		}
	case Read, Update, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if owns(actor, t) || manages(actor, t.Project) {
				return allow()
			}
			return deny("report belongs to another project")
		case model.RoleForeman:
			if owns(actor, t) || (a == Read && t.ActorIsMember) {
				return allow()
			}
			return deny("report belongs to another user")
		case model.RoleQA, model.RoleField:
			if owns(actor, t) {
				return allow()
			}
			return deny("report belongs to another user")
		case model.RoleCustomer:
			return deny("customers may not access daily reports")
		}
	}
	return deny("action not permitted on daily report")
}

func receipt(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Create:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman:
			if !owns(actor, t) {
				return deny("receipts are submitted by their owner")
			}
			if canReadProject(actor, t) {
				return allow()
			}
			return deny("project is not visible to this actor")
		case model.RoleCustomer:
			return deny("customers may not submit receipts")
		}
	case Read:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if owns(actor, t) || manages(actor, t.Project) {
				return allow()
			}
			return deny("receipt belongs to another project")
		case model.RoleQA, model.RoleField, model.RoleForeman:
			if owns(actor, t) {
				return allow()
			}
			return deny("receipt belongs to another user")
		case model.RoleCustomer:
			if affiliated(actor, t.Project) {
				return allow()
			}
			return deny("receipt belongs to another customer")
		}
	case Update, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman:
			if owns(actor, t) {
				return allow()
			}
			return deny("receipt belongs to another user")
		case model.RoleCustomer:
			return deny("customers have read-only access to receipts")
		}
	case Approve, Export:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM:
			if !manages(actor, t.Project) {
				return deny("receipt belongs to another project")
			}
			if a == Approve && owns(actor, t) {
				return deny("approvers may not decide their own receipts")
			}
			return allow()
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("role may not approve or export receipts")
		}
	}
	return deny("action not permitted on receipt")
}

func vehicle(actor model.Actor, a Action) Decision {
	switch actor.Role {
	case model.RoleAdmin:
		return allow()
	case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman:
		if a == Read {
			return allow()
		}
		return deny("only admins manage vehicles")
	case model.RoleCustomer:
		return deny("customers may not access vehicles")
	}
	return deny("action not permitted on vehicle")
}

func assignment(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Create, Read, Transition:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM, model.RoleForeman:
			return allow()
		case model.RoleQA, model.RoleField:
			if owns(actor, t) {
				return allow()
			}
			return deny("assignment belongs to another user")
		case model.RoleCustomer:
			return deny("customers may not use vehicles")
		}
	case Update, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins edit assignment history")
		}
	}
	return deny("action not permitted on vehicle assignment")
}

func inspection(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman:
			return allow()
		case model.RoleCustomer:
			return deny("customers may not access inspections")
		}
	case Create:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM, model.RoleForeman:
			return allow()
		case model.RoleQA, model.RoleField:
			if owns(actor, t) {
				return allow()
			}
			return deny("inspection must be recorded by the vehicle holder")
		case model.RoleCustomer:
			return deny("customers may not record inspections")
		}
	case Update, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins edit inspections")
		}
	}
	return deny("action not permitted on inspection")
}

func certification(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM:
			return allow()
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			if owns(actor, t) {
				return allow()
			}
			return deny("certification belongs to another user")
		}
	case Create, Update:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			if owns(actor, t) {
				return allow()
			}
			return deny("certification belongs to another user")
		}
	case Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins delete certifications")
		}
	}
	return deny("action not permitted on certification")
}

func equipment(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read, Update:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			if !owns(actor, t) {
				return deny("equipment is issued to another user")
			}
			if a == Update && !onlyFields(t, signatureFields) {
				return deny("holders may only record their signature")
			}
			return allow()
		}
	case Create, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins issue equipment")
		}
	}
	return deny("action not permitted on equipment")
}

func emergencyContact(actor model.Actor, t Target) Decision {
	switch actor.Role {
	case model.RoleAdmin:
		return allow()
	case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
		if owns(actor, t) {
			return allow()
		}
		return deny("contact belongs to another user")
	}
	return deny("action not permitted on emergency contact")
}

func user(actor model.Actor, a Action, t Target) Decision {
	switch a {
	case Read:
		switch actor.Role {
		case model.RoleAdmin, model.RolePM, model.RoleForeman:
			return allow()
		case model.RoleQA, model.RoleField, model.RoleCustomer:
			if owns(actor, t) {
				return allow()
			}
			return deny("profile belongs to another user")
		}
	case Update:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			if !owns(actor, t) {
				return deny("profile belongs to another user")
			}
			if touchesAny(t, privilegedUserFields) {
				return deny("only admins change role or active flag")
			}
			return allow()
		}
	case Create, Delete:
		switch actor.Role {
		case model.RoleAdmin:
			return allow()
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return deny("only admins manage accounts")
		}
	}
	return deny("action not permitted on user")
}
