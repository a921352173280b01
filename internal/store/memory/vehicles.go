package memory

import (
	"context"
	"slices"

	"github.com/iliyamo/field-operations/internal/apperr"
	"github.com/iliyamo/field-operations/internal/model"
	"github.com/iliyamo/field-operations/internal/policy"
)

func (v *view) CreateVehicle(_ context.Context, veh *model.Vehicle) error {
	st, done := v.begin()
	defer done()
	for _, other := range st.vehicles {
		if other.PlateNumber == veh.PlateNumber {
			return apperr.Conflict("plate %s already registered", veh.PlateNumber)
		}
	}
	veh.ID = st.next("vehicles")
	veh.CreatedAt = v.clock()
	st.vehicles[veh.ID] = *veh
	return nil
}

func (v *view) GetVehicle(_ context.Context, id uint64) (model.Vehicle, error) {
	st, done := v.begin()
	defer done()
	veh, ok := st.vehicles[id]
	if !ok {
		return model.Vehicle{}, apperr.NotFound("vehicle %d not found", id)
	}
	return veh, nil
}

func (v *view) GetVehicleForUpdate(ctx context.Context, id uint64) (model.Vehicle, error) {
	return v.GetVehicle(ctx, id)
}

func (v *view) UpdateVehicle(_ context.Context, veh model.Vehicle) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.vehicles[veh.ID]; !ok {
		return apperr.NotFound("vehicle %d not found", veh.ID)
	}
	st.vehicles[veh.ID] = veh
	return nil
}

func (v *view) ListVehicles(_ context.Context) ([]model.Vehicle, error) {
	st, done := v.begin()
	defer done()
	out := make([]model.Vehicle, 0, len(st.vehicles))
	for _, veh := range st.vehicles {
		out = append(out, veh)
	}
	return sortByID(out, func(v model.Vehicle) uint64 { return v.ID }), nil
}

// activeFor mirrors the unique index on active_vehicle_id.
func (s *state) activeFor(vehicleID, except uint64) (model.VehicleAssignment, bool) {
	for _, a := range s.assignments {
		if a.VehicleID == vehicleID && a.ID != except && a.Status == model.AssignmentActive {
			return a, true
		}
	}
	return model.VehicleAssignment{}, false
}

func (v *view) CreateAssignment(_ context.Context, a *model.VehicleAssignment) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.vehicles[a.VehicleID]; !ok {
		return apperr.NotFound("vehicle %d not found", a.VehicleID)
	}
	if a.Status == model.AssignmentActive {
		if cur, ok := st.activeFor(a.VehicleID, 0); ok {
			return apperr.Conflict("vehicle %d already has active assignment %d", a.VehicleID, cur.ID)
		}
	}
	a.ID = st.next("assignments")
	st.assignments[a.ID] = *a
	return nil
}

func (v *view) GetAssignment(_ context.Context, id uint64) (model.VehicleAssignment, error) {
	st, done := v.begin()
	defer done()
	a, ok := st.assignments[id]
	if !ok {
		return model.VehicleAssignment{}, apperr.NotFound("assignment %d not found", id)
	}
	return a, nil
}

func (v *view) GetAssignmentForUpdate(ctx context.Context, id uint64) (model.VehicleAssignment, error) {
	return v.GetAssignment(ctx, id)
}

func (v *view) UpdateAssignment(_ context.Context, a model.VehicleAssignment) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.assignments[a.ID]; !ok {
		return apperr.NotFound("assignment %d not found", a.ID)
	}
	if a.Status == model.AssignmentActive {
		if cur, ok := st.activeFor(a.VehicleID, a.ID); ok {
			return apperr.Conflict("vehicle %d already has active assignment %d", a.VehicleID, cur.ID)
		}
	}
	st.assignments[a.ID] = a
	return nil
}

func (v *view) ActiveAssignmentForVehicle(_ context.Context, vehicleID uint64) (*model.VehicleAssignment, error) {
	st, done := v.begin()
	defer done()
	if a, ok := st.activeFor(vehicleID, 0); ok {
		return &a, nil
	}
	return nil, nil
}

func (v *view) ListAssignments(_ context.Context, scope policy.Scope) ([]model.VehicleAssignment, error) {
	st, done := v.begin()
	defer done()
	out := []model.VehicleAssignment{}
	for _, a := range st.assignments {
		if scope.Match(policy.Row{OwnerID: a.UserID}) {
			out = append(out, a)
		}
	}
	return sortByID(out, func(a model.VehicleAssignment) uint64 { return a.ID }), nil
}

// ---- walkaround inspections ----

func (v *view) CreateWalkaround(_ context.Context, w *model.WalkaroundInspection) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.assignments[w.AssignmentID]; !ok {
		return apperr.NotFound("assignment %d not found", w.AssignmentID)
	}
	for _, other := range st.walkarounds {
		if other.AssignmentID == w.AssignmentID && other.Type == w.Type {
			return apperr.Conflict("assignment %d already has a %s inspection", w.AssignmentID, w.Type)
		}
	}
	w.ID = st.next("walkarounds")
	w.CreatedAt = v.clock()
	w.PhotoRefs = slices.Clone(w.PhotoRefs)
	st.walkarounds[w.ID] = *w
	return nil
}

func (v *view) ListWalkarounds(_ context.Context, assignmentID uint64) ([]model.WalkaroundInspection, error) {
	st, done := v.begin()
	defer done()
	out := []model.WalkaroundInspection{}
	for _, w := range st.walkarounds {
		if w.AssignmentID == assignmentID {
			w.PhotoRefs = slices.Clone(w.PhotoRefs)
			out = append(out, w)
		}
	}
	return sortByID(out, func(w model.WalkaroundInspection) uint64 { return w.ID }), nil
}

// ---- regular inspections ----

func (v *view) CreateRegularInspection(_ context.Context, ins *model.RegularInspection) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.vehicles[ins.VehicleID]; !ok {
		return apperr.NotFound("vehicle %d not found", ins.VehicleID)
	}
	ins.ID = st.next("inspections")
	damages := make([]model.DamageItem, len(ins.Damages))
	for i, d := range ins.Damages {
		d.ID = st.next("damages")
		d.InspectionID = ins.ID
		damages[i] = d
	}
	ins.Damages = damages
	st.inspections[ins.ID] = *ins
	ins.Damages = slices.Clone(damages)
	return nil
}

func (v *view) GetRegularInspection(_ context.Context, id uint64) (model.RegularInspection, error) {
	st, done := v.begin()
	defer done()
	ins, ok := st.inspections[id]
	if !ok {
		return model.RegularInspection{}, apperr.NotFound("inspection %d not found", id)
	}
	ins.Damages = slices.Clone(ins.Damages)
	return ins, nil
}

// DeleteRegularInspection removes the inspection; its damage items live on
// the record and go with it.
func (v *view) DeleteRegularInspection(_ context.Context, id uint64) error {
	st, done := v.begin()
	defer done()
	if _, ok := st.inspections[id]; !ok {
		return apperr.NotFound("inspection %d not found", id)
	}
	delete(st.inspections, id)
	return nil
}

func (v *view) ListRegularInspections(_ context.Context, vehicleID uint64) ([]model.RegularInspection, error) {
	st, done := v.begin()
	defer done()
	out := []model.RegularInspection{}
	for _, ins := range st.inspections {
		if vehicleID == 0 || ins.VehicleID == vehicleID {
			ins.Damages = slices.Clone(ins.Damages)
			out = append(out, ins)
		}
	}
	return sortByID(out, func(i model.RegularInspection) uint64 { return i.ID }), nil
}
