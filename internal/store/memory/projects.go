package memory

import (
	"context"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

func (v *view) CreateProject(_ context.Context, p *model.Project) error {
	st, done := v.begin()
	defer done()
	for _, other := range st.projects {
		if other.Code == p.Code {
			return apperr.Conflict("project code %s already exists", p.Code)
		}
	}
	now := v.clock()
	p.ID = st.next("projects")
	p.CreatedAt, p.UpdatedAt = now, now
	st.projects[p.ID] = *p
	return nil
}

func (v *view) GetProject(_ context.Context, id uint64) (model.Project, error) {
	st, done := v.begin()
	defer done()
	p, ok := st.projects[id]
	if !ok {
		return model.Project{}, apperr.NotFound("project %d not found", id)
	}
	return p, nil
}

func (v *view) GetProjectForUpdate(ctx context.Context, id uint64) (model.Project, error) {
	return v.GetProject(ctx, id)
}

func (v *view) UpdateProject(_ context.Context, p model.Project) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[p.ID]; !ok {
		return apperr.NotFound("project %d not found", p.ID)
	}
	for _, other := range st.projects {
		if other.ID != p.ID && other.Code == p.Code {
			return apperr.Conflict("project code %s already exists", p.Code)
		}
	}
	p.UpdatedAt = v.clock()
	st.projects[p.ID] = p
	return nil
}

// DeleteProject removes the project with its team, modules, checklist
// progress, photos, reports and receipts.
func (v *view) DeleteProject(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[id]; !ok {
		return apperr.NotFound("project %d not found", id)
	}
	for mid, m := range st.modules {
		if m.ProjectID == id {
			st.deleteModule(mid)
		}
	}
	for rid, r := range st.reports {
		if r.ProjectID == id {
			delete(st.reports, rid)
		}
	}
	for rid, r := range st.receipts {
		if r.ProjectID == id {
			delete(st.receipts, rid)
		}
	}
	delete(st.members, id)
	delete(st.projects, id)
	return nil
}

func (v *view) ListProjects(_ context.Context, scope policy.Scope, f store.ProjectFilter) ([]model.Project, error) {
	st, done := v.begin()
	defer done()
	out := []model.Project{}
	for _, p := range st.projects {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if scope.Match(st.row(0, p.ID)) {
			out = append(out, p)
		}
	}
	return sortByID(out, func(p model.Project) uint64 { return p.ID }), nil
}

func (v *view) IsProjectMember(_ context.Context, projectID, userID uint64) (bool, error) {
	st, done := v.begin()
	defer done()
	_, ok := st.members[projectID][userID]
	return ok, nil
}

func (v *view) AddProjectMember(_ context.Context, m model.ProjectMember) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[m.ProjectID]; !ok {
		return apperr.NotFound("project %d not found", m.ProjectID)
	}
	team := st.members[m.ProjectID]
	if team == nil {
		team = map[uint64]model.ProjectMember{}
		st.members[m.ProjectID] = team
	}
	if _, ok := team[m.UserID]; ok {
		return apperr.Conflict("user %d is already on project %d", m.UserID, m.ProjectID)
	}
	m.CreatedAt = v.clock()
	team[m.UserID] = m
	return nil
}

func (v *view) RemoveProjectMember(_ context.Context, projectID, userID uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.members[projectID][userID]; !ok {
		return apperr.NotFound("user %d is not on project %d", userID, projectID)
	}
	delete(st.members[projectID], userID)
	return nil
}

func (v *view) ListProjectMembers(_ context.Context, projectID uint64) ([]model.ProjectMember, error) {
	st, done := v.begin()
	defer done()
	out := []model.ProjectMember{}
	for _, m := range st.members[projectID] {
		out = append(out, m)
	}
	return sortByID(out, func(m model.ProjectMember) uint64 { return m.UserID }), nil
}

// ---- site modules ----

func (v *view) CreateSiteModule(_ context.Context, m *model.SiteModule) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[m.ProjectID]; !ok {
		return apperr.NotFound("project %d not found", m.ProjectID)
	}
	for _, other := range st.modules {
		if other.ProjectID == m.ProjectID && other.Site == m.Site && other.ModuleID == m.ModuleID {
			return apperr.Conflict("module %d already placed on site %s", m.ModuleID, m.Site)
		}
	}
	m.ID = st.next("modules")
	m.CreatedAt = v.clock()
	st.modules[m.ID] = *m
	return nil
}

func (v *view) GetSiteModule(_ context.Context, id uint64) (model.SiteModule, error) {
	st, done := v.begin()
	defer done()
	m, ok := st.modules[id]
	if !ok {
		return model.SiteModule{}, apperr.NotFound("site module %d not found", id)
	}
	return m, nil
}

func (v *view) GetSiteModuleForUpdate(ctx context.Context, id uint64) (model.SiteModule, error) {
	return v.GetSiteModule(ctx, id)
}

func (v *view) UpdateSiteModule(_ context.Context, m model.SiteModule) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.modules[m.ID]; !ok {
		return apperr.NotFound("site module %d not found", m.ID)
	}
	st.modules[m.ID] = m
	return nil
}

func (v *view) DeleteSiteModule(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.modules[id]; !ok {
		return apperr.NotFound("site module %d not found", id)
	}
	st.deleteModule(id)
	return nil
}

func (s *state) deleteModule(id uint64) {
	for cid, c := range s.checklist {
		if c.ModuleInstanceID == id {
			delete(s.checklist, cid)
		}
	}
	for pid, p := range s.photos {
		if p.ModuleInstanceID == id {
			delete(s.photos, pid)
		}
	}
	delete(s.modules, id)
}

func (v *view) ListSiteModules(_ context.Context, projectID uint64) ([]model.SiteModule, error) {
	st, done := v.begin()
	defer done()
	out := []model.SiteModule{}
	for _, m := range st.modules {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return sortByID(out, func(m model.SiteModule) uint64 { return m.ID }), nil
}

func (v *view) CreateChecklistProgress(_ context.Context, c *model.ChecklistProgress) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.modules[c.ModuleInstanceID]; !ok {
		return apperr.NotFound("site module %d not found", c.ModuleInstanceID)
	}
	for _, other := range st.checklist {
		if other.ModuleInstanceID == c.ModuleInstanceID && other.ChecklistItemID == c.ChecklistItemID {
			return apperr.Conflict("checklist item %d already tracked", c.ChecklistItemID)
		}
	}
	c.ID = st.next("checklist")
	st.checklist[c.ID] = *c
	return nil
}

func (v *view) ListChecklistProgress(_ context.Context, moduleID uint64) ([]model.ChecklistProgress, error) {
	st, done := v.begin()
	defer done()
	out := []model.ChecklistProgress{}
	for _, c := range st.checklist {
		if c.ModuleInstanceID == moduleID {
			out = append(out, c)
		}
	}
	return sortByID(out, func(c model.ChecklistProgress) uint64 { return c.ID }), nil
}

func (v *view) UpdateChecklistProgress(_ context.Context, c model.ChecklistProgress) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.checklist[c.ID]; !ok {
		return apperr.NotFound("checklist progress %d not found", c.ID)
	}
	st.checklist[c.ID] = c
	return nil
}

// ---- photos ----

func (v *view) CreatePhoto(_ context.Context, p *model.Photo) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.modules[p.ModuleInstanceID]; !ok {
		return apperr.NotFound("site module %d not found", p.ModuleInstanceID)
	}
	p.ID = st.next("photos")
	p.CreatedAt = v.clock()
	st.photos[p.ID] = *p
	return nil
}

func (v *view) GetPhoto(_ context.Context, id uint64) (model.Photo, error) {
	st, done := v.begin()
	defer done()
	p, ok := st.photos[id]
	if !ok {
		return model.Photo{}, apperr.NotFound("photo %d not found", id)
	}
	return p, nil
}

func (v *view) DeletePhoto(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.photos[id]; !ok {
		return apperr.NotFound("photo %d not found", id)
	}
	delete(st.photos, id)
	return nil
}

func (v *view) ListPhotos(_ context.Context, moduleID uint64) ([]model.Photo, error) {
	st, done := v.begin()
	defer done()
	out := []model.Photo{}
	for _, p := range st.photos {
		if p.ModuleInstanceID == moduleID {
			out = append(out, p)
		}
	}
	return sortByID(out, func(p model.Photo) uint64 { return p.ID }), nil
}

// ---- daily reports ----

func (v *view) CreateDailyReport(_ context.Context, r *model.DailyReport) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.projects[r.ProjectID]; !ok {
		return apperr.NotFound("project %d not found", r.ProjectID)
	}
	r.ID = st.next("reports")
	r.CreatedAt = v.clock()
	st.reports[r.ID] = *r
	return nil
}

func (v *view) GetDailyReport(_ context.Context, id uint64) (model.DailyReport, error) {
	st, done := v.begin()
	defer done()
	r, ok := st.reports[id]
	if !ok {
		return model.DailyReport{}, apperr.NotFound("daily report %d not found", id)
	}
	return r, nil
}

func (v *view) DeleteDailyReport(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.reports[id]; !ok {
		return apperr.NotFound("daily report %d not found", id)
	}
	delete(st.reports, id)
	return nil
}

func (v *view) ListDailyReports(_ context.Context, scope policy.Scope, projectID uint64) ([]model.DailyReport, error) {
	st, done := v.begin()
	defer done()
	out := []model.DailyReport{}
	for _, r := range st.reports {
		if projectID != 0 && r.ProjectID != projectID {
			continue
		}
		if scope.Match(st.row(r.UserID, r.ProjectID)) {
			out = append(out, r)
		}
	}
	return sortByID(out, func(r model.DailyReport) uint64 { return r.ID }), nil
}
