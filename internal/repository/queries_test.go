package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewStore(db), mock
}

func exact(q string) string { return "^" + regexp.QuoteMeta(q) + "$" }

var (
	vehicleCols    = []string{"id", "plate_number", "model", "mileage", "created_at"}
	assignmentCols = []string{"id", "vehicle_id", "user_id", "status", "starting_mileage", "ending_mileage", "assigned_by", "assigned_date", "returned_date"}
	insertAssign   = "INSERT INTO vehicle_assignments (vehicle_id,user_id,status,starting_mileage,ending_mileage,assigned_by,assigned_date,returned_date) VALUES (?,?,?,?,?,?,?,?)"
)

// assign mirrors the service's lock, check, insert sequence.
func assign(ctx context.Context, q store.Queries, a *model.VehicleAssignment) error {
	if _, err := q.GetVehicleForUpdate(ctx, a.VehicleID); err != nil {
		return err
	}
	active, err := q.ActiveAssignmentForVehicle(ctx, a.VehicleID)
	if err != nil {
		return err
	}
	if active != nil {
		return apperr.Conflict("vehicle %d is already assigned", a.VehicleID)
	}
	return q.CreateAssignment(ctx, a)
}

func TestAssignInTxCommits(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(exact("SELECT id,plate_number,model,mileage,created_at FROM vehicles WHERE id=? FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(vehicleCols).AddRow(3, "AB-123", "Hilux", 1000, day))
	mock.ExpectQuery(exact("SELECT " + assignmentColumns + " FROM vehicle_assignments WHERE active_vehicle_id=? LIMIT 1")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectExec(exact(insertAssign)).
		WithArgs(3, 9, "active", 1000, nil, 1, day, nil).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectCommit()

	a := &model.VehicleAssignment{VehicleID: 3, UserID: 9, Status: model.AssignmentActive, StartingMileage: 1000, AssignedBy: 1, AssignedDate: day}
	err := s.InTx(context.Background(), func(q store.Queries) error { return assign(context.Background(), q, a) })
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.ID != 41 {
		t.Fatalf("id = %d, want 41", a.ID)
	}
}

func TestAssignDuplicateIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// A concurrent assignment committed between the check and the insert;
	// the unique index on active_vehicle_id rejects the second row.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id=? FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(vehicleCols).AddRow(3, "AB-123", "Hilux", 1000, day))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active_vehicle_id=?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectExec(exact(insertAssign)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3' for key 'uq_active_vehicle'"})
	mock.ExpectRollback()

	a := &model.VehicleAssignment{VehicleID: 3, UserID: 9, Status: model.AssignmentActive, AssignedBy: 1, AssignedDate: day}
	err := s.InTx(context.Background(), func(q store.Queries) error { return assign(context.Background(), q, a) })
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
	if a.ID != 0 {
		t.Fatalf("id set on failed insert: %d", a.ID)
	}
}

func TestAssignActiveVehicleRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vehicles WHERE id=? FOR UPDATE")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(vehicleCols).AddRow(3, "AB-123", "Hilux", 1000, day))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active_vehicle_id=?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow(40, 3, 7, "active", 900, nil, 1, day, nil))
	mock.ExpectRollback()

	a := &model.VehicleAssignment{VehicleID: 3, UserID: 9, Status: model.AssignmentActive, AssignedBy: 1, AssignedDate: day}
	err := s.InTx(context.Background(), func(q store.Queries) error { return assign(context.Background(), q, a) })
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestLockingReadsOutsideTx(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(exact("SELECT id,plate_number,model,mileage,created_at FROM vehicles WHERE id=?")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(vehicleCols))

	_, err := s.GetVehicleForUpdate(context.Background(), 5)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestActiveAssignmentForVehicle(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	q := "SELECT " + assignmentColumns + " FROM vehicle_assignments WHERE active_vehicle_id=? LIMIT 1"

	mock.ExpectQuery(exact(q)).WithArgs(3).WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectQuery(exact(q)).WithArgs(4).
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow(12, 4, 7, "active", 900, nil, 1, day, nil))

	got, err := s.ActiveAssignmentForVehicle(context.Background(), 3)
	if err != nil || got != nil {
		t.Fatalf("idle vehicle: %+v, %v", got, err)
	}
	got, err = s.ActiveAssignmentForVehicle(context.Background(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != 12 || got.UserID != 7 || got.Status != model.AssignmentActive || got.EndingMileage != nil || got.ReturnedDate != nil {
		t.Fatalf("assignment = %+v", got)
	}
}

func TestWritesThatMissMapToNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(exact("UPDATE vehicles SET plate_number=?,model=?,mileage=? WHERE id=?")).
		WithArgs("AB-123", "Hilux", 1200, 8).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(exact("DELETE FROM photos WHERE id=?")).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateVehicle(context.Background(), model.Vehicle{ID: 8, PlateNumber: "AB-123", Model: "Hilux", Mileage: 1200})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("update: %v, want not_found", err)
	}
	if err := s.DeletePhoto(context.Background(), 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(exact("DELETE FROM projects WHERE id=?")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(q store.Queries) error {
		if err := q.DeleteProject(context.Background(), 6); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestInTxCommitFailureIsTransient(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})

	err := s.InTx(context.Background(), func(store.Queries) error { return nil })
	if apperr.KindOf(err) != apperr.KindTransient {
		t.Fatalf("err = %v, want transient", err)
	}
}
