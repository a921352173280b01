package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
)

func (q *Queries) CreateVehicle(ctx context.Context, v *model.Vehicle) error {
	now := time.Now().UTC()
	id, err := q.insert(ctx, "vehicle "+v.PlateNumber,
		"INSERT INTO vehicles (plate_number,model,mileage,created_at) VALUES (?,?,?,?)",
		v.PlateNumber, v.Model, v.Mileage, now)
	if err != nil {
		return err
	}
	v.ID, v.CreatedAt = id, now
	return nil
}

func (q *Queries) getVehicle(ctx context.Context, id uint64, suffix string) (model.Vehicle, error) {
	var v model.Vehicle
	err := q.db.QueryRowContext(ctx,
		"SELECT id,plate_number,model,mileage,created_at FROM vehicles WHERE id=?"+suffix, id).
		Scan(&v.ID, &v.PlateNumber, &v.Model, &v.Mileage, &v.CreatedAt)
	return v, mapErr(err, "vehicle")
}

func (q *Queries) GetVehicle(ctx context.Context, id uint64) (model.Vehicle, error) {
	return q.getVehicle(ctx, id, "")
}

// GetVehicleForUpdate locks the vehicle row so concurrent assignment attempts
// for the same vehicle queue behind each other.
func (q *Queries) GetVehicleForUpdate(ctx context.Context, id uint64) (model.Vehicle, error) {
	return q.getVehicle(ctx, id, q.lock())
}

func (q *Queries) UpdateVehicle(ctx context.Context, v model.Vehicle) error {
	return q.exec(ctx, "vehicle",
		"UPDATE vehicles SET plate_number=?,model=?,mileage=? WHERE id=?",
		v.PlateNumber, v.Model, v.Mileage, v.ID)
}

func (q *Queries) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id,plate_number,model,mileage,created_at FROM vehicles ORDER BY id")
	if err != nil {
		return nil, mapErr(err, "vehicles")
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.PlateNumber, &v.Model, &v.Mileage, &v.CreatedAt); err != nil {
			return nil, mapErr(err, "vehicles")
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err(), "vehicles")
}

// ---- assignments ----

const assignmentColumns = "id,vehicle_id,user_id,status,starting_mileage,ending_mileage,assigned_by,assigned_date,returned_date"

func scanAssignment(row scanner) (model.VehicleAssignment, error) {
	var (
		a        model.VehicleAssignment
		status   string
		ending   sql.NullInt64
		returned sql.NullTime
	)
	err := row.Scan(&a.ID, &a.VehicleID, &a.UserID, &status, &a.StartingMileage, &ending, &a.AssignedBy, &a.AssignedDate, &returned)
	a.Status = model.AssignmentStatus(status)
	if ending.Valid {
		n := int(ending.Int64)
		a.EndingMileage = &n
	}
	a.ReturnedDate = fromNullTime(returned)
	return a, err
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// CreateAssignment inserts the row; a second active assignment for the same
// vehicle violates uq_active_vehicle and comes back as a conflict.
func (q *Queries) CreateAssignment(ctx context.Context, a *model.VehicleAssignment) error {
	id, err := q.insert(ctx, "active assignment for vehicle",
		"INSERT INTO vehicle_assignments (vehicle_id,user_id,status,starting_mileage,ending_mileage,assigned_by,assigned_date,returned_date) VALUES (?,?,?,?,?,?,?,?)",
		a.VehicleID, a.UserID, string(a.Status), a.StartingMileage, nullInt(a.EndingMileage), a.AssignedBy, a.AssignedDate, toNullTime(a.ReturnedDate))
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (q *Queries) GetAssignment(ctx context.Context, id uint64) (model.VehicleAssignment, error) {
	a, err := scanAssignment(q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM vehicle_assignments WHERE id=? LIMIT 1", id))
	return a, mapErr(err, "assignment")
}

func (q *Queries) GetAssignmentForUpdate(ctx context.Context, id uint64) (model.VehicleAssignment, error) {
	a, err := scanAssignment(q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM vehicle_assignments WHERE id=?"+q.lock(), id))
	return a, mapErr(err, "assignment")
}

func (q *Queries) UpdateAssignment(ctx context.Context, a model.VehicleAssignment) error {
	return q.exec(ctx, "assignment",
		"UPDATE vehicle_assignments SET user_id=?,status=?,starting_mileage=?,ending_mileage=?,returned_date=? WHERE id=?",
		a.UserID, string(a.Status), a.StartingMileage, nullInt(a.EndingMileage), toNullTime(a.ReturnedDate), a.ID)
}

func (q *Queries) ActiveAssignmentForVehicle(ctx context.Context, vehicleID uint64) (*model.VehicleAssignment, error) {
	a, err := scanAssignment(q.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM vehicle_assignments WHERE active_vehicle_id=? LIMIT 1", vehicleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err, "assignment")
	}
	return &a, nil
}

func (q *Queries) ListAssignments(ctx context.Context, scope policy.Scope) ([]model.VehicleAssignment, error) {
	where, args := scopeSQL(scope, scopeColumns{Owner: "user_id"})
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM vehicle_assignments WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, mapErr(err, "assignments")
	}
	defer rows.Close()
	out := []model.VehicleAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, mapErr(err, "assignments")
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err(), "assignments")
}

// ---- walkaround inspections ----

func (q *Queries) CreateWalkaround(ctx context.Context, w *model.WalkaroundInspection) error {
	refs := w.PhotoRefs
	if refs == nil {
		refs = []string{}
	}
	photos, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	id, err := q.insert(ctx, string(w.Type)+" inspection for assignment",
		"INSERT INTO walkaround_inspections (assignment_id,inspection_type,mileage,has_damage,fuel_low,notes,photo_refs,inspector_id,created_at) VALUES (?,?,?,?,?,?,?,?,?)",
		w.AssignmentID, string(w.Type), w.Mileage, w.HasDamage, w.FuelLow, w.Notes, string(photos), w.InspectorID, now)
	if err != nil {
		return err
	}
	w.ID, w.CreatedAt = id, now
	return nil
}

func (q *Queries) ListWalkarounds(ctx context.Context, assignmentID uint64) ([]model.WalkaroundInspection, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id,assignment_id,inspection_type,mileage,has_damage,fuel_low,notes,photo_refs,inspector_id,created_at FROM walkaround_inspections WHERE assignment_id=? ORDER BY id"+q.lock(),
		assignmentID)
	if err != nil {
		return nil, mapErr(err, "walkarounds")
	}
	defer rows.Close()
	out := []model.WalkaroundInspection{}
	for rows.Next() {
		var (
			w      model.WalkaroundInspection
			typ    string
			photos []byte
		)
		if err := rows.Scan(&w.ID, &w.AssignmentID, &typ, &w.Mileage, &w.HasDamage, &w.FuelLow, &w.Notes, &photos, &w.InspectorID, &w.CreatedAt); err != nil {
			return nil, mapErr(err, "walkarounds")
		}
		w.Type = model.InspectionType(typ)
		if err := json.Unmarshal(photos, &w.PhotoRefs); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, mapErr(rows.Err(), "walkarounds")
}

// ---- regular inspections ----

// CreateRegularInspection writes the inspection and its damage items. Call it
// inside a transaction so a failed item insert discards the inspection too.
func (q *Queries) CreateRegularInspection(ctx context.Context, ins *model.RegularInspection) error {
	id, err := q.insert(ctx, "inspection",
		"INSERT INTO regular_inspections (vehicle_id,inspector_id,mileage,passed,notes,inspected_at) VALUES (?,?,?,?,?,?)",
		ins.VehicleID, ins.InspectorID, ins.Mileage, ins.Passed, ins.Notes, ins.InspectedAt)
	if err != nil {
		return err
	}
	ins.ID = id
	for i := range ins.Damages {
		d := &ins.Damages[i]
		d.InspectionID = id
		did, err := q.insert(ctx, "damage item",
			"INSERT INTO damage_items (inspection_id,location,severity,description,photo_ref) VALUES (?,?,?,?,?)",
			id, d.Location, d.Severity, d.Description, d.PhotoRef)
		if err != nil {
			return err
		}
		d.ID = did
	}
	return nil
}

func (q *Queries) GetRegularInspection(ctx context.Context, id uint64) (model.RegularInspection, error) {
	var ins model.RegularInspection
	err := q.db.QueryRowContext(ctx,
		"SELECT id,vehicle_id,inspector_id,mileage,passed,notes,inspected_at FROM regular_inspections WHERE id=? LIMIT 1", id).
		Scan(&ins.ID, &ins.VehicleID, &ins.InspectorID, &ins.Mileage, &ins.Passed, &ins.Notes, &ins.InspectedAt)
	if err != nil {
		return ins, mapErr(err, "inspection")
	}
	damages, err := q.damagesFor(ctx, []uint64{id})
	if err != nil {
		return ins, err
	}
	ins.Damages = damages[id]
	if ins.Damages == nil {
		ins.Damages = []model.DamageItem{}
	}
	return ins, nil
}

// DeleteRegularInspection removes the inspection; damage_items cascade.
func (q *Queries) DeleteRegularInspection(ctx context.Context, id uint64) error {
	return q.exec(ctx, "inspection", "DELETE FROM regular_inspections WHERE id=?", id)
}

func (q *Queries) ListRegularInspections(ctx context.Context, vehicleID uint64) ([]model.RegularInspection, error) {
	query := "SELECT id,vehicle_id,inspector_id,mileage,passed,notes,inspected_at FROM regular_inspections"
	var args []any
	if vehicleID != 0 {
		query += " WHERE vehicle_id=?"
		args = append(args, vehicleID)
	}
	rows, err := q.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, mapErr(err, "inspections")
	}
	defer rows.Close()
	out := []model.RegularInspection{}
	var ids []uint64
	for rows.Next() {
		var ins model.RegularInspection
		if err := rows.Scan(&ins.ID, &ins.VehicleID, &ins.InspectorID, &ins.Mileage, &ins.Passed, &ins.Notes, &ins.InspectedAt); err != nil {
			return nil, mapErr(err, "inspections")
		}
		out = append(out, ins)
		ids = append(ids, ins.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "inspections")
	}
	damages, err := q.damagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Damages = damages[out[i].ID]
		if out[i].Damages == nil {
			out[i].Damages = []model.DamageItem{}
		}
	}
	return out, nil
}

func (q *Queries) damagesFor(ctx context.Context, ids []uint64) (map[uint64][]model.DamageItem, error) {
	out := map[uint64][]model.DamageItem{}
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT id,inspection_id,location,severity,description,photo_ref FROM damage_items WHERE inspection_id IN ("+string(placeholders)+") ORDER BY id",
		args...)
	if err != nil {
		return nil, mapErr(err, "damage items")
	}
	defer rows.Close()
	for rows.Next() {
		var d model.DamageItem
		if err := rows.Scan(&d.ID, &d.InspectionID, &d.Location, &d.Severity, &d.Description, &d.PhotoRef); err != nil {
			return nil, mapErr(err, "damage items")
		}
		out[d.InspectionID] = append(out[d.InspectionID], d)
	}
	return out, mapErr(rows.Err(), "damage items")
}
