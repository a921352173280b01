package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
)

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", sql.ErrNoRows, apperr.KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), apperr.KindNotFound},
		{"duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3' for key 'uq_active_vehicle'"}, apperr.KindConflict},
		{"lock wait", &mysql.MySQLError{Number: 1205}, apperr.KindTransient},
		{"deadlock", &mysql.MySQLError{Number: 1213}, apperr.KindTransient},
		{"missing parent", &mysql.MySQLError{Number: 1452}, apperr.KindNotFound},
		{"bad conn", driver.ErrBadConn, apperr.KindTransient},
		{"deadline", context.DeadlineExceeded, apperr.KindTransient},
		{"other", errors.New("syntax"), ""},
	}
	for _, tc := range cases {
		got := mapErr(tc.err, "vehicle")
		if apperr.KindOf(got) != tc.want {
			t.Errorf("%s: kind %q, want %q (%v)", tc.name, apperr.KindOf(got), tc.want, got)
		}
	}
	if mapErr(nil, "x") != nil {
		t.Fatalf("mapErr(nil) must be nil")
	}
	already := apperr.Invalid("mileage", "negative")
	if mapErr(already, "x") != already {
		t.Fatalf("typed errors must pass through")
	}
}

func TestScopeSQL(t *testing.T) {
	cols := scopeColumns{Owner: "r.user_id", ProjectID: "r.project_id", Project: true}
	cases := []struct {
		name  string
		scope policy.Scope
		where string
		args  []any
	}{
		{"all", policy.Scope{All: true}, "1=1", nil},
		{"empty", policy.Scope{}, "1=0", nil},
		{"owner", policy.Scope{OwnerID: 5}, "(r.user_id = ?)", []any{uint64(5)}},
		{"pm", policy.Scope{OwnerID: 7, ManagerID: 7}, "(r.user_id = ? OR p.manager_id = ?)", []any{uint64(7), uint64(7)}},
		{"customer", policy.Scope{CustomerID: 3}, "(p.customer_id = ?)", []any{uint64(3)}},
		{"foreman", policy.Scope{ProjectStatus: model.ProjectInProgress, MemberID: 5},
			"(p.status = ? OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = r.project_id AND pm.user_id = ?))",
			[]any{"in_progress", uint64(5)}},
	}
	for _, tc := range cases {
		where, args := scopeSQL(tc.scope, cols)
		if where != tc.where || !reflect.DeepEqual(args, tc.args) {
			t.Errorf("%s: got %q %v, want %q %v", tc.name, where, args, tc.where, tc.args)
		}
	}
}

func TestScopeSQLWithoutProjectJoin(t *testing.T) {
	// Project criteria cannot apply to a table without projects p.
	where, _ := scopeSQL(policy.Scope{CustomerID: 3}, scopeColumns{Owner: "user_id"})
	if where != "1=0" {
		t.Fatalf("where = %q, want 1=0", where)
	}
}
