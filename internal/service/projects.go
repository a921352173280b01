package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

// projectTransitions lists the statuses each status may move to.
// completed is terminal.
var projectTransitions = map[model.ProjectStatus][]model.ProjectStatus{
	model.ProjectPending:    {model.ProjectInProgress, model.ProjectOnHold},
	model.ProjectInProgress: {model.ProjectCompleted, model.ProjectOnHold},
	model.ProjectOnHold:     {model.ProjectInProgress, model.ProjectPending},
}

// CanTransitionProject reports whether from -> to is a defined transition.
func CanTransitionProject(from, to model.ProjectStatus) bool {
	for _, s := range projectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NewProject is the input of CreateProject. A pm creating a project becomes
// its manager; an admin names the manager.
type NewProject struct {
	Code       string
	Name       string
	ManagerID  uint64
	QAID       uint64
	CustomerID *uint64
}

// ProjectPatch changes a project. Nil fields are left alone.
type ProjectPatch struct {
	Name       *string
	ManagerID  *uint64
	QAID       *uint64
	CustomerID *uint64 // zero clears the customer
}

func (p ProjectPatch) fields() []string {
	var f []string
	if p.Name != nil {
		f = append(f, "name")
	}
	if p.ManagerID != nil {
		f = append(f, "manager_id")
	}
	if p.QAID != nil {
		f = append(f, "qa_id")
	}
	if p.CustomerID != nil {
		f = append(f, "customer_id")
	}
	return f
}

// CreateProject opens a project in status pending.
func (s *Service) CreateProject(ctx context.Context, actor model.Actor, in NewProject) (model.Project, error) {
	if err := authorize(actor, policy.Project, policy.Create, policy.Target{}); err != nil {
		return model.Project{}, err
	}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return model.Project{}, apperr.Invalid("code", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Project{}, apperr.Invalid("name", "is required")
	}
	if actor.Role == model.RolePM {
		in.ManagerID = actor.ID
	}
	var out model.Project
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		if err := checkUserRole(ctx, q, "manager_id", in.ManagerID, model.RolePM, model.RoleAdmin); err != nil {
			return err
		}
		if in.QAID != 0 {
			if err := checkUserRole(ctx, q, "qa_id", in.QAID, model.RoleQA); err != nil {
				return err
			}
		}
		now := s.now()
		p := model.Project{
			Code: in.Code, Name: strings.TrimSpace(in.Name), ManagerID: in.ManagerID, QAID: in.QAID,
			CustomerID: nonZero(in.CustomerID), Status: model.ProjectPending, CreatedBy: actor.ID,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := q.CreateProject(ctx, &p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// GetProject returns a project the actor may read.
func (s *Service) GetProject(ctx context.Context, actor model.Actor, id uint64) (model.Project, error) {
	t, err := projectTarget(ctx, s.Store, actor, id, false)
	if err != nil {
		return model.Project{}, err
	}
	if err := authorize(actor, policy.Project, policy.Read, t); err != nil {
		return model.Project{}, err
	}
	return *t.Project, nil
}

// ListProjects lists the projects visible to the actor, optionally by status.
func (s *Service) ListProjects(ctx context.Context, actor model.Actor, f store.ProjectFilter) ([]model.Project, error) {
	if err := authorize(actor, policy.Project, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Invalid("status", "unknown status %q", f.Status)
	}
	scope := policy.ScopeFor(actor, policy.Project)
	if scope.Empty() {
		return []model.Project{}, nil
	}
	return s.Store.ListProjects(ctx, scope, f)
}

// UpdateProject applies p. Only admins reassign the manager.
func (s *Service) UpdateProject(ctx context.Context, actor model.Actor, id uint64, p ProjectPatch) (model.Project, error) {
	var out model.Project
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		t.Fields = p.fields()
		if err := authorize(actor, policy.Project, policy.Update, t); err != nil {
			return err
		}
		pr := *t.Project
		if p.Name != nil {
			if strings.TrimSpace(*p.Name) == "" {
				return apperr.Invalid("name", "is required")
			}
			pr.Name = strings.TrimSpace(*p.Name)
		}
		if p.ManagerID != nil {
			if err := checkUserRole(ctx, q, "manager_id", *p.ManagerID, model.RolePM, model.RoleAdmin); err != nil {
				return err
			}
			pr.ManagerID = *p.ManagerID
		}
		if p.QAID != nil {
			if *p.QAID != 0 {
				if err := checkUserRole(ctx, q, "qa_id", *p.QAID, model.RoleQA); err != nil {
					return err
				}
			}
			pr.QAID = *p.QAID
		}
		if p.CustomerID != nil {
			pr.CustomerID = nonZero(p.CustomerID)
		}
		pr.UpdatedAt = s.now()
		if err := q.UpdateProject(ctx, pr); err != nil {
			return err
		}
		out = pr
		return nil
	})
	return out, err
}

// TransitionProject moves a project to status to.
func (s *Service) TransitionProject(ctx context.Context, actor model.Actor, id uint64, to model.ProjectStatus) (model.Project, error) {
	if !to.Valid() {
		return model.Project{}, apperr.Invalid("status", "unknown status %q", to)
	}
	var out model.Project
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Project, policy.Transition, t); err != nil {
			return err
		}
		pr := *t.Project
		if !CanTransitionProject(pr.Status, to) {
			return apperr.Conflict("project cannot move from %s to %s", pr.Status, to)
		}
		pr.Status = to
		pr.UpdatedAt = s.now()
		if err := q.UpdateProject(ctx, pr); err != nil {
			return err
		}
		out = pr
		return nil
	})
	return out, err
}

// DeleteProject removes a project with its modules, photos, team, reports
// and receipts.
// Photo and receipt files are removed once the rows are gone.
func (s *Service) DeleteProject(ctx context.Context, actor model.Actor, id uint64) error {
	var refs []string
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, id, true)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.Project, policy.Delete, t); err != nil {
			return err
		}
		mods, err := q.ListSiteModules(ctx, id)
		if err != nil {
			return err
		}
		for _, m := range mods {
			photos, err := q.ListPhotos(ctx, m.ID)
			if err != nil {
				return err
			}
			for _, p := range photos {
				refs = append(refs, p.Ref)
			}
		}
		receipts, err := q.ListReceipts(ctx, policy.Scope{All: true}, store.ReceiptFilter{ProjectID: id})
		if err != nil {
			return err
		}
		for _, r := range receipts {
			refs = append(refs, r.ImageRef)
		}
		return q.DeleteProject(ctx, id)
	})
	if err == nil {
		s.removeFiles(refs...)
	}
	return err
}

// ---- team ----

// AddTeamMember puts userID on the project's team.
func (s *Service) AddTeamMember(ctx context.Context, actor model.Actor, projectID, userID uint64) (model.ProjectMember, error) {
	var out model.ProjectMember
	err := s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, projectID, false)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.TeamMember, policy.Create, t); err != nil {
			return err
		}
		u, err := q.GetUser(ctx, userID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Invalid("user_id", "user %d does not exist", userID)
		}
		if err != nil {
			return err
		}
		if !u.Active || u.Role == model.RoleCustomer {
			return apperr.Invalid("user_id", "user %d cannot join a project team", userID)
		}
		m := model.ProjectMember{ProjectID: projectID, UserID: userID, AddedBy: actor.ID, CreatedAt: s.now()}
		if err := q.AddProjectMember(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// RemoveTeamMember takes userID off the project's team.
func (s *Service) RemoveTeamMember(ctx context.Context, actor model.Actor, projectID, userID uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		t, err := projectTarget(ctx, q, actor, projectID, false)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.TeamMember, policy.Delete, t); err != nil {
			return err
		}
		return q.RemoveProjectMember(ctx, projectID, userID)
	})
}

// ListTeamMembers lists the team of a project the actor may read.
func (s *Service) ListTeamMembers(ctx context.Context, actor model.Actor, projectID uint64) ([]model.ProjectMember, error) {
	t, err := projectTarget(ctx, s.Store, actor, projectID, false)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.TeamMember, policy.Read, t); err != nil {
		return nil, err
	}
	return s.Store.ListProjectMembers(ctx, projectID)
}

// ---- daily reports ----

// SubmitDailyReport records the actor's report for a project and day.
func (s *Service) SubmitDailyReport(ctx context.Context, actor model.Actor, projectID uint64, day time.Time, summary string) (model.DailyReport, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return model.DailyReport{}, apperr.Invalid("summary", "is required")
	}
	if day.IsZero() {
		day = s.now()
	}
	t, err := projectTarget(ctx, s.Store, actor, projectID, false)
	if err != nil {
		return model.DailyReport{}, err
	}
	t.OwnerID = actor.ID
	if err := authorize(actor, policy.DailyReport, policy.Create, t); err != nil {
		return model.DailyReport{}, err
	}
	y, m, d := day.UTC().Date()
	r := model.DailyReport{
		ProjectID: projectID, UserID: actor.ID, ReportDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Summary: summary, CreatedAt: s.now(),
	}
	if err := s.Store.CreateDailyReport(ctx, &r); err != nil {
		return model.DailyReport{}, err
	}
	return r, nil
}

// GetDailyReport returns a report the actor may read.
func (s *Service) GetDailyReport(ctx context.Context, actor model.Actor, id uint64) (model.DailyReport, error) {
	r, t, err := s.reportTarget(ctx, s.Store, actor, id)
	if err != nil {
		return model.DailyReport{}, err
	}
	if err := authorize(actor, policy.DailyReport, policy.Read, t); err != nil {
		return model.DailyReport{}, err
	}
	return r, nil
}

// ListDailyReports lists the visible reports, of one project when projectID
// is set.
func (s *Service) ListDailyReports(ctx context.Context, actor model.Actor, projectID uint64) ([]model.DailyReport, error) {
	if err := authorize(actor, policy.DailyReport, policy.List, policy.Target{}); err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(actor, policy.DailyReport)
	if scope.Empty() {
		return []model.DailyReport{}, nil
	}
	return s.Store.ListDailyReports(ctx, scope, projectID)
}

// DeleteDailyReport removes a report.
func (s *Service) DeleteDailyReport(ctx context.Context, actor model.Actor, id uint64) error {
	return s.Store.InTx(ctx, func(q store.Queries) error {
		_, t, err := s.reportTarget(ctx, q, actor, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.DailyReport, policy.Delete, t); err != nil {
			return err
		}
		return q.DeleteDailyReport(ctx, id)
	})
}

func (s *Service) reportTarget(ctx context.Context, q store.Queries, actor model.Actor, id uint64) (model.DailyReport, policy.Target, error) {
	r, err := q.GetDailyReport(ctx, id)
	if gone, err := absent(err); gone || err != nil {
		return r, policy.Target{Absent: gone}, err
	}
	t, err := projectTarget(ctx, q, actor, r.ProjectID, false)
	if err != nil {
		return r, t, err
	}
	t.OwnerID = r.UserID
	return r, t, nil
}

// checkUserRole validates that id names an active user holding one of roles.
func checkUserRole(ctx context.Context, q store.Queries, field string, id uint64, roles ...model.Role) error {
	if id == 0 {
		return apperr.Invalid(field, "is required")
	}
	u, err := q.GetUser(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Invalid(field, "user %d does not exist", id)
	}
	if err != nil {
		return err
	}
	if !u.Active {
		return apperr.Invalid(field, "user %d is inactive", id)
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return apperr.Invalid(field, "user %d has role %s", id, u.Role)
}

func nonZero(id *uint64) *uint64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}
