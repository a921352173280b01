package repository

import (
	"strings"

	"github.com/iliyamo/field-operations/internal/policy"
)

// scopeColumns tells scopeSQL which columns of the queried table carry the
// scope facts. Project columns are read from the joined projects table
// aliased as p; an empty column disables that criterion.
type scopeColumns struct {
	Owner     string // e.g. r.user_id
	ProjectID string // e.g. r.project_id or p.id
	Project   bool   // query joins projects p
}

// scopeSQL renders a policy.Scope as a WHERE fragment with its args. An
// empty scope renders as a predicate that matches nothing.
func scopeSQL(s policy.Scope, cols scopeColumns) (string, []any) {
	if s.All {
		return "1=1", nil
	}
	var (
		parts []string
		args  []any
	)
	if s.OwnerID != 0 && cols.Owner != "" {
		parts = append(parts, cols.Owner+" = ?")
		args = append(args, s.OwnerID)
	}
	if cols.Project {
		if s.ManagerID != 0 {
			parts = append(parts, "p.manager_id = ?")
			args = append(args, s.ManagerID)
		}
		if s.CustomerID != 0 {
			parts = append(parts, "p.customer_id = ?")
			args = append(args, s.CustomerID)
		}
		if s.ProjectStatus != "" {
			parts = append(parts, "p.status = ?")
			args = append(args, string(s.ProjectStatus))
		}
		if s.MemberID != 0 {
			parts = append(parts, "EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = "+cols.ProjectID+" AND pm.user_id = ?)")
			args = append(args, s.MemberID)
		}
	}
	if len(parts) == 0 {
		return "1=0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
