package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
	"github.com/iliyamo/field-operations/internal/store"
)

const projectColumns = "p.id,p.code,p.name,p.manager_id,p.qa_id,p.customer_id,p.status,p.created_by,p.created_at,p.updated_at"

func scanProject(row scanner) (model.Project, error) {
	var (
		p      model.Project
		cust   sql.NullInt64
		status string
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.ManagerID, &p.QAID, &cust, &status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	p.CustomerID = fromNullID(cust)
	p.Status = model.ProjectStatus(status)
	return p, err
}

func (q *Queries) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "project "+p.Code,
		"INSERT INTO projects (code,name,manager_id,qa_id,customer_id,status,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)",
		p.Code, p.Name, p.ManagerID, p.QAID, toNullID(p.CustomerID), string(p.Status), p.CreatedBy, now, now)
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, now, now
	return nil
}

func (q *Queries) GetProject(ctx context.Context, id uint64) (model.Project, error) {
	p, err := scanProject(q.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects p WHERE p.id=? LIMIT 1", id))
	return p, mapErr(err, "project")
}

// GetProjectForUpdate locks the project row; status transitions go through it.
func (q *Queries) GetProjectForUpdate(ctx context.Context, id uint64) (model.Project, error) {
	p, err := scanProject(q.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects p WHERE p.id=?"+q.lock(), id))
	return p, mapErr(err, "project")
}

func (q *Queries) UpdateProject(ctx context.Context, p model.Project) error {
	return q.exec(ctx, "project",
		"UPDATE projects SET code=?,name=?,manager_id=?,qa_id=?,customer_id=?,status=? WHERE id=?",
		p.Code, p.Name, p.ManagerID, p.QAID, toNullID(p.CustomerID), string(p.Status), p.ID)
}

// DeleteProject relies on ON DELETE CASCADE for team, modules, checklist
// progress, photos, reports and receipts.
func (q *Queries) DeleteProject(ctx context.Context, id uint64) error {
	return q.exec(ctx, "project", "DELETE FROM projects WHERE id=?", id)
}

func (q *Queries) ListProjects(ctx context.Context, scope policy.Scope, f store.ProjectFilter) ([]model.Project, error) {
	where, args := scopeSQL(scope, scopeColumns{ProjectID: "p.id", Project: true})
	if f.Status != "" {
		where += " AND p.status = ?"
		args = append(args, string(f.Status))
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects p WHERE "+where+" ORDER BY p.id", args...)
	if err != nil {
		return nil, mapErr(err, "projects")
	}
	defer rows.Close()
	out := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapErr(err, "projects")
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err(), "projects")
}

// ---- team ----

func (q *Queries) IsProjectMember(ctx context.Context, projectID, userID uint64) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM project_members WHERE project_id=? AND user_id=? LIMIT 1", projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, mapErr(err, "project member")
}

func (q *Queries) AddProjectMember(ctx context.Context, m model.ProjectMember) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO project_members (project_id,user_id,added_by) VALUES (?,?,?)",
		m.ProjectID, m.UserID, m.AddedBy)
	return mapErr(err, "project member")
}

func (q *Queries) RemoveProjectMember(ctx context.Context, projectID, userID uint64) error {
	return q.exec(ctx, "project member",
		"DELETE FROM project_members WHERE project_id=? AND user_id=?", projectID, userID)
}

func (q *Queries) ListProjectMembers(ctx context.Context, projectID uint64) ([]model.ProjectMember, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT project_id,user_id,added_by,created_at FROM project_members WHERE project_id=? ORDER BY user_id", projectID)
	if err != nil {
		return nil, mapErr(err, "project members")
	}
	defer rows.Close()
	out := []model.ProjectMember{}
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.AddedBy, &m.CreatedAt); err != nil {
			return nil, mapErr(err, "project members")
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err(), "project members")
}

// ---- site modules ----

const moduleColumns = "id,project_id,site,module_id,required_photo_count,uploaded_photo_count,completion_percentage,status,completed_at,created_at"

func scanModule(row scanner) (model.SiteModule, error) {
	var (
		m            model.SiteModule
		site, status string
		completed    sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ProjectID, &site, &m.ModuleID, &m.RequiredPhotoCount, &m.UploadedPhotoCount,
		&m.CompletionPercentage, &status, &completed, &m.CreatedAt)
	m.Site = model.Site(site)
	m.Status = model.ModuleStatus(status)
	m.CompletedAt = fromNullTime(completed)
	return m, err
}

func (q *Queries) CreateSiteModule(ctx context.Context, m *model.SiteModule) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "site module",
		"INSERT INTO project_site_modules (project_id,site,module_id,required_photo_count,uploaded_photo_count,completion_percentage,status,completed_at,created_at) VALUES (?,?,?,?,?,?,?,?,?)",
		m.ProjectID, string(m.Site), m.ModuleID, m.RequiredPhotoCount, m.UploadedPhotoCount, m.CompletionPercentage,
		string(m.Status), toNullTime(m.CompletedAt), now)
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt = id, now
	return nil
}

func (q *Queries) GetSiteModule(ctx context.Context, id uint64) (model.SiteModule, error) {
	m, err := scanModule(q.db.QueryRowContext(ctx,
		"SELECT "+moduleColumns+" FROM project_site_modules WHERE id=? LIMIT 1", id))
	return m, mapErr(err, "site module")
}

// GetSiteModuleForUpdate serialises concurrent photo uploads to one module.
func (q *Queries) GetSiteModuleForUpdate(ctx context.Context, id uint64) (model.SiteModule, error) {
	m, err := scanModule(q.db.QueryRowContext(ctx,
		"SELECT "+moduleColumns+" FROM project_site_modules WHERE id=?"+q.lock(), id))
	return m, mapErr(err, "site module")
}

func (q *Queries) UpdateSiteModule(ctx context.Context, m model.SiteModule) error {
	return q.exec(ctx, "site module",
		"UPDATE project_site_modules SET required_photo_count=?,uploaded_photo_count=?,completion_percentage=?,status=?,completed_at=? WHERE id=?",
		m.RequiredPhotoCount, m.UploadedPhotoCount, m.CompletionPercentage, string(m.Status), toNullTime(m.CompletedAt), m.ID)
}

func (q *Queries) DeleteSiteModule(ctx context.Context, id uint64) error {
	return q.exec(ctx, "site module", "DELETE FROM project_site_modules WHERE id=?", id)
}

func (q *Queries) ListSiteModules(ctx context.Context, projectID uint64) ([]model.SiteModule, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+moduleColumns+" FROM project_site_modules WHERE project_id=? ORDER BY id", projectID)
	if err != nil {
		return nil, mapErr(err, "site modules")
	}
	defer rows.Close()
	out := []model.SiteModule{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, mapErr(err, "site modules")
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err(), "site modules")
}

func (q *Queries) CreateChecklistProgress(ctx context.Context, c *model.ChecklistProgress) error {
	id, err := q.insert(ctx, "checklist item",
		"INSERT INTO checklist_progress (module_instance_id,checklist_item_id,label,required_count,uploaded_count,is_completed) VALUES (?,?,?,?,?,?)",
		c.ModuleInstanceID, c.ChecklistItemID, c.Label, c.RequiredCount, c.UploadedCount, c.IsCompleted)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (q *Queries) ListChecklistProgress(ctx context.Context, moduleID uint64) ([]model.ChecklistProgress, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id,module_instance_id,checklist_item_id,label,required_count,uploaded_count,is_completed FROM checklist_progress WHERE module_instance_id=? ORDER BY id"+q.lock(),
		moduleID)
	if err != nil {
		return nil, mapErr(err, "checklist")
	}
	defer rows.Close()
	out := []model.ChecklistProgress{}
	for rows.Next() {
		var c model.ChecklistProgress
		if err := rows.Scan(&c.ID, &c.ModuleInstanceID, &c.ChecklistItemID, &c.Label, &c.RequiredCount, &c.UploadedCount, &c.IsCompleted); err != nil {
			return nil, mapErr(err, "checklist")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "checklist")
}

func (q *Queries) UpdateChecklistProgress(ctx context.Context, c model.ChecklistProgress) error {
	return q.exec(ctx, "checklist item",
		"UPDATE checklist_progress SET required_count=?,uploaded_count=?,is_completed=? WHERE id=?",
		c.RequiredCount, c.UploadedCount, c.IsCompleted, c.ID)
}

// ---- photos ----

func (q *Queries) CreatePhoto(ctx context.Context, p *model.Photo) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "photo",
		"INSERT INTO photos (module_instance_id,checklist_item_id,user_id,ref,created_at) VALUES (?,?,?,?,?)",
		p.ModuleInstanceID, p.ChecklistItemID, p.UserID, p.Ref, now)
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt = id, now
	return nil
}

func (q *Queries) GetPhoto(ctx context.Context, id uint64) (model.Photo, error) {
	var p model.Photo
	err := q.db.QueryRowContext(ctx,
		"SELECT id,module_instance_id,checklist_item_id,user_id,ref,created_at FROM photos WHERE id=? LIMIT 1", id).
		Scan(&p.ID, &p.ModuleInstanceID, &p.ChecklistItemID, &p.UserID, &p.Ref, &p.CreatedAt)
	return p, mapErr(err, "photo")
}

func (q *Queries) DeletePhoto(ctx context.Context, id uint64) error {
	return q.exec(ctx, "photo", "DELETE FROM photos WHERE id=?", id)
}

func (q *Queries) ListPhotos(ctx context.Context, moduleID uint64) ([]model.Photo, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id,module_instance_id,checklist_item_id,user_id,ref,created_at FROM photos WHERE module_instance_id=? ORDER BY id", moduleID)
	if err != nil {
		return nil, mapErr(err, "photos")
	}
	defer rows.Close()
	out := []model.Photo{}
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.ModuleInstanceID, &p.ChecklistItemID, &p.UserID, &p.Ref, &p.CreatedAt); err != nil {
			return nil, mapErr(err, "photos")
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err(), "photos")
}

// ---- daily reports ----

func (q *Queries) CreateDailyReport(ctx context.Context, r *model.DailyReport) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "daily report",
		"INSERT INTO daily_reports (project_id,user_id,report_date,summary,created_at) VALUES (?,?,?,?,?)",
		r.ProjectID, r.UserID, r.ReportDate, r.Summary, now)
	if err != nil {
		return err
	}
	r.ID, r.CreatedAt = id, now
	return nil
}

func (q *Queries) GetDailyReport(ctx context.Context, id uint64) (model.DailyReport, error) {
	var r model.DailyReport
	err := q.db.QueryRowContext(ctx,
		"SELECT id,project_id,user_id,report_date,summary,created_at FROM daily_reports WHERE id=? LIMIT 1", id).
		Scan(&r.ID, &r.ProjectID, &r.UserID, &r.ReportDate, &r.Summary, &r.CreatedAt)
	return r, mapErr(err, "daily report")
}

func (q *Queries) DeleteDailyReport(ctx context.Context, id uint64) error {
	return q.exec(ctx, "daily report", "DELETE FROM daily_reports WHERE id=?", id)
}

func (q *Queries) ListDailyReports(ctx context.Context, scope policy.Scope, projectID uint64) ([]model.DailyReport, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "r.user_id", ProjectID: "r.project_id", Project: true})
	if projectID != 0 {
		where += " AND r.project_id = ?"
		args = append(args, projectID)
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT r.id,r.project_id,r.user_id,r.report_date,r.summary,r.created_at FROM daily_reports r JOIN projects p ON p.id = r.project_id WHERE "+where+" ORDER BY r.id",
		args...)
	if err != nil {
		return nil, mapErr(err, "daily reports")
	}
	defer rows.Close()
	out := []model.DailyReport{}
	for rows.Next() {
		var r model.DailyReport
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.UserID, &r.ReportDate, &r.Summary, &r.CreatedAt); err != nil {
			return nil, mapErr(err, "daily reports")
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err(), "daily reports")
}
