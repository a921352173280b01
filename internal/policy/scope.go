package policy

import (
	"slices"

	"github.com/iliyamo/field-operations/internal/model"
)

// Scope is the visibility filter of a list query. All lets every row
// through; otherwise a row is visible when it satisfies at least one of the
// set criteria. A Scope with no criteria is empty: the query returns no
// rows and is never an error.
type Scope struct {
	All bool

	OwnerID       uint64              // row belongs to this user
	ManagerID     uint64              // row's project is managed by this user
	CustomerID    uint64              // row's project belongs to this customer
	MemberID      uint64              // this user is on the row's project team
	ProjectStatus model.ProjectStatus // row's project is in this status
}

// Empty reports whether no row can match.
func (s Scope) Empty() bool {
	return !s.All && s.OwnerID == 0 && s.ManagerID == 0 && s.CustomerID == 0 &&
		s.MemberID == 0 && s.ProjectStatus == ""
}

// Row is the part of a record a Scope is evaluated against. Members is the
// team of Project and is only consulted for MemberID criteria.
type Row struct {
	OwnerID uint64
	Project *model.Project
	Members []uint64
}

// Match evaluates the scope against a row in memory. The MySQL repository
// renders the same predicate as SQL.
func (s Scope) Match(r Row) bool {
	if s.All {
		return true
	}
	if s.OwnerID != 0 && r.OwnerID == s.OwnerID {
		return true
	}
	p := r.Project
	if p == nil {
		return false
	}
	switch {
	case s.ManagerID != 0 && p.ManagerID == s.ManagerID:
		return true
	case s.CustomerID != 0 && p.CustomerID != nil && *p.CustomerID == s.CustomerID:
		return true
	case s.ProjectStatus != "" && p.Status == s.ProjectStatus:
		return true
	case s.MemberID != 0 && slices.Contains(r.Members, s.MemberID):
		return true
	}
	return false
}

// ScopeFor returns the rows of resource r that actor may see in a list.
func ScopeFor(actor model.Actor, r Resource) Scope {
	if !actor.Active || !actor.Role.Valid() {
		return Scope{}
	}
	if actor.Role == model.RoleAdmin {
		return Scope{All: true}
	}
	self := Scope{OwnerID: actor.ID}

	switch r {
	case Project, SiteModule, TeamMember, Photo:
		return projectScope(actor)

	case DailyReport:
		switch actor.Role {
		case model.RolePM:
			return Scope{OwnerID: actor.ID, ManagerID: actor.ID}
		case model.RoleForeman:
			return Scope{OwnerID: actor.ID, MemberID: actor.ID}
		case model.RoleQA, model.RoleField:
			return self
		case model.RoleCustomer:
			return Scope{}
		}

	case Receipt:
		switch actor.Role {
		case model.RolePM:
			return Scope{OwnerID: actor.ID, ManagerID: actor.ID}
		case model.RoleQA, model.RoleField, model.RoleForeman:
			return self
		case model.RoleCustomer:
			if actor.CustomerAffiliation == nil {
				return Scope{}
			}
			return Scope{CustomerID: *actor.CustomerAffiliation}
		}

	case Vehicle, Inspection:
		switch actor.Role {
		case model.RolePM, model.RoleQA, model.RoleField, model.RoleForeman:
			return Scope{All: true}
		case model.RoleCustomer:
			return Scope{}
		}

	case VehicleAssignment:
		switch actor.Role {
		case model.RolePM, model.RoleForeman:
			return Scope{All: true}
		case model.RoleQA, model.RoleField:
			return self
		case model.RoleCustomer:
			return Scope{}
		}

	case Certification:
		switch actor.Role {
		case model.RolePM:
			return Scope{All: true}
		case model.RoleQA, model.RoleField, model.RoleForeman, model.RoleCustomer:
			return self
		}

	case User:
		switch actor.Role {
		case model.RolePM, model.RoleForeman:
			return Scope{All: true}
		case model.RoleQA, model.RoleField, model.RoleCustomer:
			return self
		}

	case Equipment, EmergencyContact:
		return self
	}
	return Scope{}
}

func projectScope(actor model.Actor) Scope {
	switch actor.Role {
	case model.RolePM:
		return Scope{ManagerID: actor.ID}
	case model.RoleCustomer:
		if actor.CustomerAffiliation == nil {
			return Scope{}
		}
		return Scope{CustomerID: *actor.CustomerAffiliation}
	case model.RoleQA, model.RoleField:
		return Scope{ProjectStatus: model.ProjectInProgress}
	case model.RoleForeman:
		return Scope{ProjectStatus: model.ProjectInProgress, MemberID: actor.ID}
	}
	return Scope{}
}
